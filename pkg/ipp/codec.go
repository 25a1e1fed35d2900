// Copyright 2025 VPrint Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package ipp

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

const headerSize = 6

// DefaultMaxAttributesSize bounds the header and attribute groups of a request.
const DefaultMaxAttributesSize = 64 << 10

// Decoder reads requests and responses from a stream.
type Decoder struct {
	// MaxAttributesSize bounds header plus groups. Zero uses DefaultMaxAttributesSize.
	MaxAttributesSize int64
	// MaxPayload bounds the trailing payload. Zero disallows a payload.
	MaxPayload int64
}

// DecodeRequest reads one request: header, groups and payload until EOF.
//
// A version outside SupportedVersions yields a request with the header
// fields filled and an error wrapping ErrVersionNotSupported, so the caller
// can still echo the request id.
func (d Decoder) DecodeRequest(r io.Reader) (*Request, error) {
	limit := d.MaxAttributesSize
	if limit <= 0 {
		limit = DefaultMaxAttributesSize
	}
	br := bufio.NewReader(r)
	head := &countingReader{r: br, remaining: limit}

	var hdr [headerSize]byte
	if _, err := io.ReadFull(head, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrMalformedRequest, err)
	}
	req := &Request{
		Version:    Version{Major: hdr[0], Minor: hdr[1]},
		Operation:  Operation(binary.BigEndian.Uint16(hdr[2:4])),
		RequestID:  binary.BigEndian.Uint16(hdr[4:6]),
		Attributes: make(Attributes),
	}
	if !req.Version.Supported() {
		return req, fmt.Errorf("%w: %s", ErrVersionNotSupported, req.Version)
	}

	groups, err := readGroups(head)
	if err != nil {
		return req, err
	}
	// Operation attributes win over job template attributes of the same name.
	for _, want := range []GroupTag{GroupOperation, GroupJob} {
		for _, g := range groups {
			if g.Tag == want {
				for name, values := range g.Attrs {
					if !req.Attributes.Has(name) {
						req.Attributes[name] = values
					}
				}
			}
		}
	}

	payload, err := io.ReadAll(io.LimitReader(br, d.MaxPayload+1))
	if err != nil {
		return req, fmt.Errorf("%w: payload: %w", ErrMalformedRequest, err)
	}
	if int64(len(payload)) > d.MaxPayload {
		return req, fmt.Errorf("%w: more than %d bytes", ErrPayloadTooLarge, d.MaxPayload)
	}
	if len(payload) > 0 {
		req.Payload = payload
	}
	return req, nil
}

// DecodeResponse reads one response.
func (d Decoder) DecodeResponse(r io.Reader) (*Response, error) {
	limit := d.MaxAttributesSize
	if limit <= 0 {
		limit = DefaultMaxAttributesSize
	}
	head := &countingReader{r: bufio.NewReader(r), remaining: limit}

	var hdr [headerSize]byte
	if _, err := io.ReadFull(head, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: response header: %w", ErrMalformedRequest, err)
	}
	resp := &Response{
		Version:    Version{Major: hdr[0], Minor: hdr[1]},
		Status:     Status(binary.BigEndian.Uint16(hdr[2:4])),
		RequestID:  binary.BigEndian.Uint16(hdr[4:6]),
		Attributes: make(Attributes),
	}
	groups, err := readGroups(head)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g.Tag == GroupOperation && len(resp.Attributes) == 0 {
			resp.Attributes = g.Attrs
			continue
		}
		resp.Groups = append(resp.Groups, g)
	}
	if op, ok, err := resp.Attributes.Int(AttrOperationID); ok && err == nil {
		resp.Operation = Operation(op)
		delete(resp.Attributes, AttrOperationID)
	}
	return resp, nil
}

// readGroups parses groups up to and including the end tag.
func readGroups(r io.Reader) ([]Group, error) {
	var (
		groups []Group
		cur    *Group
		last   string
		tag    [1]byte
	)
	for {
		if _, err := io.ReadFull(r, tag[:]); err != nil {
			return nil, fmt.Errorf("%w: missing end-of-attributes: %w", ErrMalformedRequest, err)
		}
		b := tag[0]
		if b == byte(GroupEnd) {
			return groups, nil
		}
		if b < 0x10 {
			if b > byte(GroupUnsupported) || b == 0 {
				return nil, fmt.Errorf("%w: unknown group tag 0x%02x", ErrMalformedRequest, b)
			}
			groups = append(groups, Group{Tag: GroupTag(b), Attrs: make(Attributes)})
			cur = &groups[len(groups)-1]
			last = ""
			continue
		}
		if cur == nil {
			return nil, fmt.Errorf("%w: value tag 0x%02x outside a group", ErrMalformedRequest, b)
		}

		name, err := readField(r)
		if err != nil {
			return nil, err
		}
		raw, err := readField(r)
		if err != nil {
			return nil, err
		}
		value, err := decodeValue(ValueTag(b), raw)
		if err != nil {
			return nil, fmt.Errorf("%w: attribute %q: %w", ErrMalformedRequest, name, err)
		}

		if name == "" {
			// Additional value of the previous attribute.
			if last == "" {
				return nil, fmt.Errorf("%w: additional value without attribute", ErrMalformedRequest)
			}
			cur.Attrs.Add(last, value)
			continue
		}
		last = name
		cur.Attrs.Add(name, value)
	}
}

func readField(r io.Reader) (string, error) {
	var n [2]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return "", fmt.Errorf("%w: field length: %w", ErrMalformedRequest, err)
	}
	buf := make([]byte, binary.BigEndian.Uint16(n[:]))
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("%w: field: %w", ErrMalformedRequest, err)
	}
	return string(buf), nil
}

func decodeValue(tag ValueTag, raw string) (string, error) {
	switch tag {
	case TagInteger, TagEnum:
		if len(raw) != 4 {
			return "", fmt.Errorf("integer of %d bytes", len(raw))
		}
		return strconv.Itoa(int(int32(binary.BigEndian.Uint32([]byte(raw))))), nil
	case TagBoolean:
		if len(raw) != 1 {
			return "", fmt.Errorf("boolean of %d bytes", len(raw))
		}
		return strconv.FormatBool(raw[0] != 0), nil
	case TagRange:
		if len(raw) != 8 {
			return "", fmt.Errorf("range of %d bytes", len(raw))
		}
		lo := int32(binary.BigEndian.Uint32([]byte(raw[:4])))
		hi := int32(binary.BigEndian.Uint32([]byte(raw[4:])))
		return fmt.Sprintf("%d-%d", lo, hi), nil
	default:
		return raw, nil
	}
}

// EncodeRequest writes req, including its payload.
func EncodeRequest(w io.Writer, req *Request) error {
	var buf bytes.Buffer
	writeHeader(&buf, req.Version, uint16(req.Operation), req.RequestID)
	if err := writeGroup(&buf, GroupOperation, req.Attributes); err != nil {
		return err
	}
	buf.WriteByte(byte(GroupEnd))
	buf.Write(req.Payload)
	_, err := w.Write(buf.Bytes())
	return err
}

// EncodeResponse buffers the whole response for resp and writes it in one call.
func EncodeResponse(w io.Writer, resp *Response) error {
	b, err := MarshalResponse(resp)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// MarshalResponse returns the wire form of resp. The operation code is echoed
// as the operation-id attribute.
func MarshalResponse(resp *Response) ([]byte, error) {
	var buf bytes.Buffer
	writeHeader(&buf, resp.Version, uint16(resp.Status), resp.RequestID)

	op := resp.Attributes.Clone()
	if op == nil {
		op = make(Attributes)
	}
	op.SetInt(AttrOperationID, int(resp.Operation))
	if err := writeGroup(&buf, GroupOperation, op); err != nil {
		return nil, err
	}
	for _, g := range resp.Groups {
		if err := writeGroup(&buf, g.Tag, g.Attrs); err != nil {
			return nil, err
		}
	}
	buf.WriteByte(byte(GroupEnd))
	return buf.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, v Version, code, requestID uint16) {
	buf.WriteByte(v.Major)
	buf.WriteByte(v.Minor)
	buf.Write(binary.BigEndian.AppendUint16(nil, code))
	buf.Write(binary.BigEndian.AppendUint16(nil, requestID))
}

func writeGroup(buf *bytes.Buffer, tag GroupTag, attrs Attributes) error {
	buf.WriteByte(byte(tag))
	for _, name := range attrs.Names() {
		vtag := SyntaxOf(name)
		for i, value := range attrs[name] {
			raw, err := encodeValue(vtag, value)
			if err != nil {
				return fmt.Errorf("encode %q: %w", name, err)
			}
			key := name
			if i > 0 {
				key = ""
			}
			if err := writeAttribute(buf, vtag, key, raw); err != nil {
				return fmt.Errorf("encode %q: %w", name, err)
			}
		}
	}
	return nil
}

var errFieldTooLong = errors.New("field exceeds 65535 bytes")

func writeAttribute(buf *bytes.Buffer, tag ValueTag, name string, raw []byte) error {
	if len(name) > math.MaxUint16 || len(raw) > math.MaxUint16 {
		return errFieldTooLong
	}
	buf.WriteByte(byte(tag))
	buf.Write(binary.BigEndian.AppendUint16(nil, uint16(len(name))))
	buf.WriteString(name)
	buf.Write(binary.BigEndian.AppendUint16(nil, uint16(len(raw))))
	buf.Write(raw)
	return nil
}

func encodeValue(tag ValueTag, value string) ([]byte, error) {
	switch tag {
	case TagInteger, TagEnum:
		n, err := cast.ToInt32E(strings.TrimSpace(value))
		if err != nil {
			return nil, err
		}
		return binary.BigEndian.AppendUint32(nil, uint32(n)), nil
	case TagBoolean:
		b, err := cast.ToBoolE(value)
		if err != nil {
			return nil, err
		}
		if b {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case TagRange:
		lo, hi, err := ParseRange(value)
		if err != nil {
			return nil, err
		}
		out := binary.BigEndian.AppendUint32(nil, uint32(lo))
		return binary.BigEndian.AppendUint32(out, uint32(hi)), nil
	default:
		return []byte(value), nil
	}
}

// ParseRange parses "lo-hi" or a single integer meaning lo == hi.
func ParseRange(s string) (lo, hi int32, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, errors.New("empty range")
	}
	// Skip the first byte so a leading minus stays with the lower bound.
	idx := strings.IndexByte(s[1:], '-')
	if idx < 0 {
		n, err := cast.ToInt32E(s)
		return n, n, err
	}
	idx++
	if lo, err = cast.ToInt32E(strings.TrimSpace(s[:idx])); err != nil {
		return 0, 0, err
	}
	if hi, err = cast.ToInt32E(strings.TrimSpace(s[idx+1:])); err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

// countingReader fails once more than remaining bytes were read.
type countingReader struct {
	r         io.Reader
	remaining int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	if c.remaining <= 0 {
		return 0, fmt.Errorf("%w: attributes exceed size limit", ErrMalformedRequest)
	}
	if int64(len(p)) > c.remaining {
		p = p[:c.remaining]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	return n, err
}

package ipp

// Group is one attribute group of a message.
type Group struct {
	Tag   GroupTag
	Attrs Attributes
}

// Request is one decoded client request.
type Request struct {
	Version   Version
	Operation Operation
	RequestID uint16
	// Attributes holds the operation group. Job group attributes are merged
	// in by the decoder, operation values first.
	Attributes Attributes
	Payload    []byte
}

// NewRequest returns a request with the mandatory charset and language set.
func NewRequest(op Operation, requestID uint16) *Request {
	return &Request{
		Version:   DefaultVersion,
		Operation: op,
		RequestID: requestID,
		Attributes: Attributes{
			AttrCharset:         {"utf-8"},
			AttrNaturalLanguage: {"en"},
		},
	}
}

// Response is one fully buffered server response.
type Response struct {
	Version   Version
	Status    Status
	Operation Operation
	RequestID uint16
	// Attributes is the operation group.
	Attributes Attributes
	// Groups are the job, printer and unsupported groups after it.
	Groups []Group
}

// NewResponse returns a response for req carrying status.
func NewResponse(req *Request, status Status) *Response {
	resp := &Response{
		Version:   DefaultVersion,
		Status:    status,
		Operation: req.Operation,
		RequestID: req.RequestID,
		Attributes: Attributes{
			AttrCharset:         {"utf-8"},
			AttrNaturalLanguage: {"en"},
		},
	}
	if req.Version.Supported() {
		resp.Version = req.Version
	}
	return resp
}

// AddGroup appends a group and returns its attributes for filling in.
func (r *Response) AddGroup(tag GroupTag) Attributes {
	attrs := make(Attributes)
	r.Groups = append(r.Groups, Group{Tag: tag, Attrs: attrs})
	return attrs
}

// GroupsOf returns the attributes of every group tagged tag.
func (r *Response) GroupsOf(tag GroupTag) []Attributes {
	var out []Attributes
	for _, g := range r.Groups {
		if g.Tag == tag {
			out = append(out, g.Attrs)
		}
	}
	return out
}

// StatusMessage returns the status-message attribute, if any.
func (r *Response) StatusMessage() string {
	return r.Attributes.Get(AttrStatusMessage)
}

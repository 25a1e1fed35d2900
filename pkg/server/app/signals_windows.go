//go:build windows

package app

import "context"

func (a *App) watchSignals(context.Context) func() { return func() {} }

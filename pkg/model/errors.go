package model

import "fmt"

// MisuseError reports a cell that could not be attached to a model, or a
// key with no attached cell.
type MisuseError struct {
	Model  string
	Key    string
	Reason string
}

// Error implements the error interface.
func (e *MisuseError) Error() string {
	switch {
	case e.Model != "" && e.Key != "":
		return fmt.Sprintf("eventreduce: %s.%s: %s", e.Model, e.Key, e.Reason)
	case e.Key != "":
		return fmt.Sprintf("eventreduce: %s: %s", e.Key, e.Reason)
	default:
		return "eventreduce: " + e.Reason
	}
}

// Code returns the catalogue code of the error.
func (e *MisuseError) Code() string {
	return "E008"
}

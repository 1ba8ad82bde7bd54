package compiler

import "google.golang.org/protobuf/types/known/wrapperspb"

func wrapperOrNil(v int) *wrapperspb.UInt32Value {
	if v <= 0 {
		return nil
	}
	return wrapperspb.UInt32(uint32(v))
}

func boolOrNil(v bool) *wrapperspb.BoolValue {
	if !v {
		return nil
	}
	return wrapperspb.Bool(v)
}

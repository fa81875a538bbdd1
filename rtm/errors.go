package rtm

import "errors"

var ErrUnknownEnum = errors.New("rtm: unknown enum value")
var ErrEmptyValue = errors.New("rtm: attribute value is empty")
var ErrNotText = errors.New("rtm: message payload is not text")
var ErrEmptyStates = errors.New("rtm: presence event carries no user states")

package policy

import (
	"fmt"
	"time"
)

// Policy is the reliability contract of an operation.
type Policy uint8

const (
	// Acknowledged operations are confirmed by an ack message.
	Acknowledged Policy = iota + 1

	// FireAndForget operations are never confirmed; a settle delay follows.
	FireAndForget

	// IdempotentRead operations read state without writing.
	IdempotentRead
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case Acknowledged:
		return "ACKNOWLEDGED"
	case FireAndForget:
		return "FIRE_AND_FORGET"
	case IdempotentRead:
		return "IDEMPOTENT_READ"
	default:
		return "UNKNOWN"
	}
}

// Operation identifies one user-facing operation kind.
type Operation uint8

const (
	OpPing Operation = iota + 1
	OpBrightnessGet
	OpBrightnessSet
	OpPixelCountGet
	OpPixelCountSet
	OpPowerOn
	OpPowerOff
	OpSequencerPlay
	OpSequencerPause
	OpSequencerNext
	OpSequencerRandom
	OpSequencerDuration
	OpPatternRender
	OpPatternVariables
	OpPatternSelect
	OpConfigDump
	OpRawSend
	OpRawRequest
)

var operationNames = map[Operation]string{
	OpPing:              "ping",
	OpBrightnessGet:     "brightness-get",
	OpBrightnessSet:     "brightness-set",
	OpPixelCountGet:     "pixel-count-get",
	OpPixelCountSet:     "pixel-count-set",
	OpPowerOn:           "power-on",
	OpPowerOff:          "power-off",
	OpSequencerPlay:     "sequencer-play",
	OpSequencerPause:    "sequencer-pause",
	OpSequencerNext:     "sequencer-next",
	OpSequencerRandom:   "sequencer-random",
	OpSequencerDuration: "sequencer-duration",
	OpPatternRender:     "pattern-render",
	OpPatternVariables:  "pattern-variables",
	OpPatternSelect:     "pattern-select",
	OpConfigDump:        "config-dump",
	OpRawSend:           "raw-send",
	OpRawRequest:        "raw-request",
}

// String returns the operation name.
func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return fmt.Sprintf("operation(%d)", uint8(o))
}

// DefaultSettleDelay outlasts the device's typical processing time for a
// single unacknowledged write.
const DefaultSettleDelay = 150 * time.Millisecond

// MaxVerifyRetries caps the write-wait-verify cycle of a verified write.
const MaxVerifyRetries = 1

// Rule is the static reliability rule of one operation.
type Rule struct {
	// Policy is the acknowledgment contract.
	Policy Policy

	// Settle reports whether a settle delay follows the write.
	// Only FireAndForget rules settle.
	Settle bool

	// Verifiable reports whether the written value can be read back.
	Verifiable bool

	// MaxRetries bounds write-wait-verify repetitions after the first attempt.
	MaxRetries int
}

var table = map[Operation]Rule{
	OpPing:              {Policy: Acknowledged},
	OpBrightnessGet:     {Policy: IdempotentRead},
	OpBrightnessSet:     {Policy: FireAndForget, Settle: true, Verifiable: true, MaxRetries: MaxVerifyRetries},
	OpPixelCountGet:     {Policy: IdempotentRead},
	OpPixelCountSet:     {Policy: Acknowledged, Verifiable: true, MaxRetries: MaxVerifyRetries},
	OpPowerOn:           {Policy: FireAndForget, Settle: true, Verifiable: true, MaxRetries: MaxVerifyRetries},
	OpPowerOff:          {Policy: FireAndForget, Settle: true, Verifiable: true, MaxRetries: MaxVerifyRetries},
	OpSequencerPlay:     {Policy: Acknowledged},
	OpSequencerPause:    {Policy: Acknowledged},
	OpSequencerNext:     {Policy: Acknowledged},
	OpSequencerRandom:   {Policy: Acknowledged},
	OpSequencerDuration: {Policy: Acknowledged},
	OpPatternRender:     {Policy: Acknowledged},
	OpPatternVariables:  {Policy: FireAndForget, Settle: true},
	OpPatternSelect:     {Policy: Acknowledged},
	OpConfigDump:        {Policy: IdempotentRead},
	OpRawSend:           {Policy: Acknowledged},
	OpRawRequest:        {Policy: Acknowledged},
}

// Classify returns the rule for op. It panics when op has no rule.
func Classify(op Operation) Rule {
	rule, ok := table[op]
	if !ok {
		panic(fmt.Sprintf("policy: no rule for %s", op))
	}
	return rule
}

// Lookup returns the rule for op and whether one exists.
func Lookup(op Operation) (Rule, bool) {
	rule, ok := table[op]
	return rule, ok
}

// Operations returns every classified operation in declaration order.
func Operations() []Operation {
	ops := make([]Operation, 0, len(table))
	for op := OpPing; op <= OpRawRequest; op++ {
		if _, ok := table[op]; ok {
			ops = append(ops, op)
		}
	}
	return ops
}

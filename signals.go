package replica

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for replica events.
var (
	SignalMembersDiscovered = capitan.NewSignal("replica.members.discovered", "Field discovery computed for a type")
	SignalPlanCreated       = capitan.NewSignal("replica.plan.created", "Clone plan built for a type")
	SignalCloneStart        = capitan.NewSignal("replica.clone.start", "Clone operation beginning")
	SignalCloneComplete     = capitan.NewSignal("replica.clone.complete", "Clone operation finished")
	SignalStrategyFailed    = capitan.NewSignal("replica.strategy.failed", "Cloning method returned an error")
)

// Keys for typed event data.
var (
	KeyTypeName      = capitan.NewStringKey("type_name")
	KeyVisibility    = capitan.NewStringKey("visibility")
	KeyField         = capitan.NewStringKey("field")
	KeyMethod        = capitan.NewStringKey("method")
	KeyMemberCount   = capitan.NewIntKey("member_count")
	KeyLevelCount    = capitan.NewIntKey("level_count")
	KeyStrategyCount = capitan.NewIntKey("strategy_count")
	KeyDuration      = capitan.NewDurationKey("duration")
	KeyError         = capitan.NewErrorKey("error")
)

// emitMembersDiscovered emits an event when a type's members are first discovered.
func emitMembersDiscovered(ctx context.Context, typeName string, vis Visibility, members, levels int, duration time.Duration) {
	capitan.Emit(ctx, SignalMembersDiscovered,
		KeyTypeName.Field(typeName),
		KeyVisibility.Field(vis.String()),
		KeyMemberCount.Field(members),
		KeyLevelCount.Field(levels),
		KeyDuration.Field(duration),
	)
}

// emitPlanCreated emits an event when an engine builds a plan for a struct type.
func emitPlanCreated(ctx context.Context, typeName string, members, strategies int) {
	capitan.Emit(ctx, SignalPlanCreated,
		KeyTypeName.Field(typeName),
		KeyMemberCount.Field(members),
		KeyStrategyCount.Field(strategies),
	)
}

// emitCloneStart emits an event when a clone begins.
func emitCloneStart(ctx context.Context, typeName string) {
	capitan.Emit(ctx, SignalCloneStart,
		KeyTypeName.Field(typeName),
	)
}

// emitCloneComplete emits an event when a clone finishes.
func emitCloneComplete(ctx context.Context, typeName string, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyTypeName.Field(typeName),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalCloneComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalCloneComplete, fields...)
	}
}

// emitStrategyFailed emits an event when a cloning method fails.
func emitStrategyFailed(ctx context.Context, typeName, field, method string, err error) {
	capitan.Error(ctx, SignalStrategyFailed,
		KeyTypeName.Field(typeName),
		KeyField.Field(field),
		KeyMethod.Field(method),
		KeyError.Field(err),
	)
}

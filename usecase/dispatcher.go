package usecase

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/vozcasa/vozcasa/domain/entities"
	"github.com/vozcasa/vozcasa/internal/observability"
	"github.com/vozcasa/vozcasa/repository"
)

// ToolDispatcher resolves and executes device mutations requested by the
// remote model. Every call produces exactly one result; resolution failures
// are reported through the result, never as errors, so they can never tear
// the session down.
type ToolDispatcher struct {
	registry *repository.DeviceRegistry
	logger   *zap.Logger

	// Dispatches are serialized so at most one mutation is in flight at a
	// time, even if a future transport delivers tool calls concurrently.
	mu sync.Mutex
}

// NewToolDispatcher creates a dispatcher bound to the given registry.
func NewToolDispatcher(registry *repository.DeviceRegistry, logger *zap.Logger) *ToolDispatcher {
	return &ToolDispatcher{
		registry: registry,
		logger:   logger,
	}
}

// Dispatch executes one tool call synchronously and returns its result.
func (t *ToolDispatcher) Dispatch(call entities.ToolCall) entities.ToolResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := t.execute(call)

	t.logger.Info("Dispatched tool call",
		zap.String("call_id", call.CallID),
		zap.String("function", call.Name),
		zap.String("status", result.Status),
		zap.String("message", result.Message))
	observability.RecordToolCall(call.Name, result.Status)

	return result
}

func (t *ToolDispatcher) execute(call entities.ToolCall) entities.ToolResult {
	switch call.Name {
	case entities.ToolControlDevice:
		return t.controlDevice(call)
	case entities.ToolSetDeviceValue:
		return t.setDeviceValue(call)
	default:
		return errorResult(call, fmt.Sprintf("unknown function %q", call.Name))
	}
}

func (t *ToolDispatcher) controlDevice(call entities.ToolCall) entities.ToolResult {
	name, ok := call.Args["deviceName"].(string)
	if !ok || name == "" {
		return errorResult(call, "deviceName is required")
	}
	action, ok := call.Args["action"].(string)
	if !ok {
		return errorResult(call, "action is required")
	}
	if action != entities.ActionTurnOn && action != entities.ActionTurnOff {
		return errorResult(call, fmt.Sprintf("unknown action %q", action))
	}

	device, found := t.registry.FindByFuzzyName(name)
	if !found {
		return errorResult(call, "device not found")
	}

	on := action == entities.ActionTurnOn
	device, err := t.registry.SetPower(device.ID, on)
	if err != nil {
		return errorResult(call, err.Error())
	}

	state := "desligado"
	if device.IsOn {
		state = "ligado"
	}
	return okResult(call, fmt.Sprintf("%s foi %s", device.Name, state))
}

func (t *ToolDispatcher) setDeviceValue(call entities.ToolCall) entities.ToolResult {
	name, ok := call.Args["deviceName"].(string)
	if !ok || name == "" {
		return errorResult(call, "deviceName is required")
	}
	value, ok := call.Args["value"].(float64)
	if !ok {
		return errorResult(call, "value must be a number")
	}

	device, found := t.registry.FindByFuzzyName(name)
	if !found {
		return errorResult(call, "device not found")
	}

	// Stored verbatim: neither the registry nor the dispatcher imposes a
	// range, the model decides what is sensible for the device.
	device, err := t.registry.SetValue(device.ID, value)
	if err != nil {
		return errorResult(call, err.Error())
	}

	return okResult(call, fmt.Sprintf("%s de %s ajustado para %g", device.ValueLabel(), device.Name, value))
}

func okResult(call entities.ToolCall, message string) entities.ToolResult {
	return entities.ToolResult{
		CallID:  call.CallID,
		Name:    call.Name,
		Status:  entities.StatusOK,
		Message: message,
	}
}

func errorResult(call entities.ToolCall, message string) entities.ToolResult {
	return entities.ToolResult{
		CallID:  call.CallID,
		Name:    call.Name,
		Status:  entities.StatusError,
		Message: message,
	}
}

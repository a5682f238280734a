// Package tools exposes the timelock engine as MCP tools over HTTP.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"timelock/internal/seal"
	"timelock/internal/timeparse"
)

// Result is the outcome of a tool call. Payload is marshalled into the text
// content of the MCP response.
type Result struct {
	Payload any
	IsError bool
}

// Toolbox dispatches tool calls to the engine.
type Toolbox struct {
	engine  *seal.Engine
	catalog *Catalog
	logger  *slog.Logger
}

// NewToolbox creates a toolbox that dispatches validated calls to engine.
func NewToolbox(engine *seal.Engine, catalog *Catalog, logger *slog.Logger) *Toolbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Toolbox{engine: engine, catalog: catalog, logger: logger}
}

// ErrUnknownTool is returned by Call for names not in the catalog.
var ErrUnknownTool = errors.New("unknown tool")

type encryptPayload struct {
	Status string `json:"status"`
	seal.EncryptResult
	Instructions instructions `json:"instructions"`
}

type instructions struct {
	HowToDecrypt  []string `json:"how_to_decrypt"`
	ImportantInfo []string `json:"important_info"`
}

type statusPayload struct {
	seal.StatusResult
	Message string `json:"message"`
}

type decryptPayload struct {
	Status           string `json:"status"`
	Identity         string `json:"identity"`
	DecryptedMessage string `json:"decrypted_message,omitempty"`
	Message          string `json:"message,omitempty"`
	UnlockTimestamp  int64  `json:"unlock_timestamp"`
	RemainingSeconds *int64 `json:"remaining_seconds,omitempty"`
	Note             string `json:"note,omitempty"`
}

type unixTimePayload struct {
	timeparse.ResolvedTime
	TimeExpression string `json:"time_expression"`
	Note           string `json:"note"`
}

type currentTimePayload struct {
	CurrentTime   string `json:"current_time"`
	UnixTimestamp int64  `json:"unix_timestamp"`
}

// Call validates args and runs the named tool. Engine failures come back as
// a Result with IsError set; the returned error is reserved for unknown tools.
func (t *Toolbox) Call(ctx context.Context, name string, args map[string]any) (Result, error) {
	if !t.catalog.Has(name) {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	if err := t.catalog.Validate(name, args); err != nil {
		return t.fail(ctx, name, err, seal.ErrorResult{
			Status:   "error",
			Category: seal.CategoryInvalidRequest,
			Error:    err.Error(),
			Help:     "check the tool's input schema and call it again",
		}), nil
	}

	var (
		payload any
		err     error
	)

	switch name {
	case ToolEncrypt:
		payload, err = t.encrypt(ctx, stringArg(args, "message"), stringArg(args, "unlock_time"))
	case ToolStatus:
		payload, err = t.status(ctx, stringArg(args, "identity"))
	case ToolDecrypt:
		payload, err = t.decrypt(ctx, stringArg(args, "identity"), stringArg(args, "encrypted_data"))
	case ToolUnixTime:
		expr := stringArg(args, "time_expression")
		if expr == "" {
			expr = "now"
		}
		payload, err = t.unixTime(expr)
	case ToolCurrentTime:
		now := t.engine.Now().UTC()
		payload = currentTimePayload{
			CurrentTime:   now.Format(timeparse.HumanLayout),
			UnixTimestamp: now.Unix(),
		}
	case ToolExplain:
		payload = explanation
	}

	if err != nil {
		return t.fail(ctx, name, err, seal.Describe(err)), nil
	}

	t.logger.InfoContext(ctx, "tool call completed", "tool", name, "request_id", RequestIDFrom(ctx))
	return Result{Payload: payload}, nil
}

func (t *Toolbox) fail(ctx context.Context, name string, err error, res seal.ErrorResult) Result {
	t.logger.WarnContext(ctx, "tool call failed",
		"tool", name,
		"category", res.Category,
		"request_id", RequestIDFrom(ctx),
		"error", err,
	)
	return Result{Payload: res, IsError: true}
}

func (t *Toolbox) encrypt(ctx context.Context, message, unlockTime string) (any, error) {
	res, err := t.engine.Encrypt(ctx, message, unlockTime, t.engine.Now())
	if err != nil {
		return nil, err
	}

	return encryptPayload{
		Status:        "success",
		EncryptResult: res,
		Instructions: instructions{
			HowToDecrypt: []string{
				fmt.Sprintf("Your message will be decryptable after %s", res.UnlockDate),
				"Save the 'identity' and 'encrypted_data' values above; both are needed to decrypt",
				"Use the 'check_decryption_status' tool to see if decryption is available",
				"Use the 'decrypt_timelock_message' tool when ready to decrypt",
			},
			ImportantInfo: []string{
				fmt.Sprintf("The decryption key is held by the %s key authority until the unlock time", res.Authority),
				"The message cannot be decrypted before the specified time",
				"Nothing is stored by this server; losing encrypted_data loses the message",
			},
		},
	}, nil
}

func (t *Toolbox) status(ctx context.Context, identity string) (any, error) {
	res, err := t.engine.Status(ctx, identity)
	if err != nil {
		return nil, err
	}

	msg := "Timelock has not yet expired - message cannot be decrypted"
	if res.State == seal.OutcomeReady {
		msg = "Timelock has expired - message can be decrypted"
	}
	return statusPayload{StatusResult: res, Message: msg}, nil
}

func (t *Toolbox) decrypt(ctx context.Context, identity, encryptedData string) (any, error) {
	res, err := t.engine.Decrypt(ctx, identity, encryptedData)
	if err != nil {
		return nil, err
	}

	if res.Outcome == seal.OutcomeLocked {
		remaining := res.RemainingSeconds
		return decryptPayload{
			Status:           string(seal.OutcomeLocked),
			Identity:         res.Identity,
			Message:          "Timelock has not yet expired - cannot decrypt message",
			UnlockTimestamp:  res.UnlockTimestamp,
			RemainingSeconds: &remaining,
		}, nil
	}

	return decryptPayload{
		Status:           "success",
		Identity:         res.Identity,
		DecryptedMessage: res.Message,
		UnlockTimestamp:  res.UnlockTimestamp,
		Note:             "Message successfully decrypted",
	}, nil
}

func (t *Toolbox) unixTime(expr string) (any, error) {
	resolved, err := t.engine.ResolveTime(expr, t.engine.Now())
	if err != nil {
		return nil, err
	}
	return unixTimePayload{
		ResolvedTime:   resolved,
		TimeExpression: expr,
		Note:           "Use the unix_timestamp value for precise timelock encryption",
	}, nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

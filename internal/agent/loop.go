// Package agent drives the tool-calling conversation loop: it invokes
// the chat service round by round, executes the model's tool calls
// against the project's document tree, feeds the results back into the
// conversation, and stops on a text-only turn, an error, or the round
// ceiling.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"editron/internal/doctree"
	"editron/internal/llm"
)

// DefaultMaxRounds is the round ceiling. A deliberate safety valve
// against runaway tool calling; configurable but always present.
const DefaultMaxRounds = 10

// State is the terminal state of one loop execution.
type State string

const (
	// StateConverged - the model produced a text-only turn.
	StateConverged State = "converged"
	// StateFailed - a round ended with an error event.
	StateFailed State = "failed"
	// StateExhausted - the round ceiling was hit. Not an error; the
	// last surfaced text, if any, stands as the final answer.
	StateExhausted State = "exhausted"
)

// Generator is the single-shot chat dependency. Satisfied by
// llm.ChatService; scripted in tests.
type Generator interface {
	Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamEvent, error)
}

// Callbacks surface loop progress to the caller. Any callback may be
// nil. OnFileEdit and OnFileDelete fire synchronously as each mutation
// is applied, before the next model round begins.
type Callbacks struct {
	OnText         func(text string)
	OnToolActivity func(activity string)
	OnFileEdit     func(path, content string)
	OnFileDelete   func(path string)
}

// Request is one orchestration call. Tree is owned by the caller for
// the duration of the call; the mutated tree comes back on the Result.
type Request struct {
	Message    string
	History    []llm.Turn
	Tree       *doctree.Folder
	Provider   string
	UserAPIKey string
	Callbacks  Callbacks
}

// Result reports how the loop ended and the tree reflecting every
// applied tool effect. Tool effects are atomic per call, not
// transactional across the loop: effects applied before a failure or
// cancellation are not rolled back.
type Result struct {
	State     State
	Tree      *doctree.Folder
	FinalText string
	Rounds    int
}

// Loop is the orchestrator. One Loop may serve concurrent requests;
// all per-request state lives on the stack.
type Loop struct {
	generator Generator
	maxRounds int
	logger    *slog.Logger
}

// NewLoop creates an orchestrator over the given chat generator.
// maxRounds values below 1 fall back to DefaultMaxRounds.
func NewLoop(generator Generator, maxRounds int, logger *slog.Logger) *Loop {
	if maxRounds < 1 {
		maxRounds = DefaultMaxRounds
	}
	return &Loop{generator: generator, maxRounds: maxRounds, logger: logger}
}

// Run executes the loop to a terminal state. Only prior user and
// assistant text turns from History seed the conversation; tool-call
// and tool-result turns are synthesized fresh within this execution.
// The returned error is non-nil only for pre-flight failures (e.g. a
// missing credential); in-stream errors end in StateFailed with the
// message surfaced via FinalText.
func (l *Loop) Run(ctx context.Context, req *Request) (*Result, error) {
	conversation := seedConversation(req.History, req.Message)
	tree := req.Tree

	fileTree := strings.Join(doctree.ListPaths(tree), "\n")

	result := &Result{Tree: tree}
	for round := 1; round <= l.maxRounds; round++ {
		result.Rounds = round

		events, err := l.generator.Stream(ctx, &llm.ChatRequest{
			Messages:   conversation,
			Provider:   req.Provider,
			FileTree:   fileTree,
			UserAPIKey: req.UserAPIKey,
		})
		if err != nil {
			return nil, err
		}

		sawToolCall := false
		for event := range events {
			switch event.Type {
			case llm.EventText:
				result.FinalText = event.Content
				if req.Callbacks.OnText != nil {
					req.Callbacks.OnText(event.Content)
				}
				conversation = append(conversation, llm.TextTurn(llm.RoleAssistant, event.Content))

			case llm.EventToolCall:
				sawToolCall = true
				tree = l.executeToolCall(event.ToolCall, tree, req.Callbacks, &conversation)
				result.Tree = tree
				fileTree = strings.Join(doctree.ListPaths(tree), "\n")

			case llm.EventError:
				l.logger.Warn("agent round failed",
					"round", round,
					"error", event.Content,
				)
				result.State = StateFailed
				result.FinalText = event.Content
				return result, nil
			}
		}

		if !sawToolCall {
			result.State = StateConverged
			return result, nil
		}
	}

	l.logger.Info("agent loop exhausted", "max_rounds", l.maxRounds)
	result.State = StateExhausted
	return result, nil
}

// executeToolCall applies one tool call to the tree and appends the
// assistant turn recording the call plus the matching tool-result
// turn. Execution failures become result strings fed back to the
// model, never loop-fatal errors.
func (l *Loop) executeToolCall(call *llm.ToolInvocation, tree *doctree.Folder, callbacks Callbacks, conversation *[]llm.Turn) *doctree.Folder {
	path, _ := call.Arguments["path"].(string)

	var resultText string
	switch {
	case path == "":
		// Covers malformed (unparseable) arguments too: the model
		// gets the failure back and may retry with corrected ones.
		resultText = fmt.Sprintf("Error: invalid arguments for tool %q", call.Name)

	case call.Name == llm.ToolReadFile:
		if callbacks.OnToolActivity != nil {
			callbacks.OnToolActivity(fmt.Sprintf("Reading `%s`...", path))
		}
		if file, ok := doctree.Find(tree, path); ok {
			resultText = file.Content
		} else {
			resultText = fmt.Sprintf("Error: File %q not found", path)
		}

	case call.Name == llm.ToolEditFile:
		content, ok := call.Arguments["content"].(string)
		if !ok {
			resultText = fmt.Sprintf("Error: invalid arguments for tool %q", call.Name)
			break
		}
		if callbacks.OnToolActivity != nil {
			callbacks.OnToolActivity(fmt.Sprintf("Editing `%s`...", path))
		}
		tree = doctree.Upsert(tree, path, content)
		if callbacks.OnFileEdit != nil {
			callbacks.OnFileEdit(path, content)
		}
		resultText = fmt.Sprintf("Successfully updated %s", path)

	case call.Name == llm.ToolDeleteFile:
		if callbacks.OnToolActivity != nil {
			callbacks.OnToolActivity(fmt.Sprintf("Deleting `%s`...", path))
		}
		if removed, ok := doctree.Remove(tree, path); ok {
			tree = removed
			if callbacks.OnFileDelete != nil {
				callbacks.OnFileDelete(path)
			}
			resultText = fmt.Sprintf("Successfully deleted %s", path)
		} else {
			resultText = fmt.Sprintf("Error: File %q not found", path)
		}

	default:
		resultText = fmt.Sprintf("Error: unknown tool %q", call.Name)
	}

	*conversation = append(*conversation, recordToolCall(call), toolResultTurn(call.ID, resultText))
	return tree
}

// seedConversation keeps only prior visible turns (user and assistant
// text) and appends the new user message.
func seedConversation(history []llm.Turn, message string) []llm.Turn {
	conversation := make([]llm.Turn, 0, len(history)+1)
	for _, turn := range history {
		if turn.Role != llm.RoleUser && turn.Role != llm.RoleAssistant {
			continue
		}
		if len(turn.ToolCalls) > 0 {
			continue
		}
		conversation = append(conversation, turn)
	}
	return append(conversation, llm.TextTurn(llm.RoleUser, message))
}

// recordToolCall rebuilds the assistant turn carrying the call so the
// following tool-result turn has a call id to reference.
func recordToolCall(call *llm.ToolInvocation) llm.Turn {
	arguments := "{}"
	if call.Arguments != nil {
		if encoded, err := json.Marshal(call.Arguments); err == nil {
			arguments = string(encoded)
		}
	}
	return llm.Turn{
		Role: llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{
			ID:   call.ID,
			Type: "function",
			Function: llm.FunctionCall{
				Name:      call.Name,
				Arguments: arguments,
			},
		}},
	}
}

func toolResultTurn(callID, content string) llm.Turn {
	return llm.Turn{
		Role:       llm.RoleTool,
		Content:    &content,
		ToolCallID: callID,
	}
}

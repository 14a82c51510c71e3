package ai

import (
	"os"
	"strings"
)

// parseAIDebugEnv reads AUTOFIX_AI_DEBUG and returns (debugEnabled, promptsEnabled).
// Valid values:
//
//	"all" or "1" or "true" - request metadata and prompt bodies
//	"prompts" - prompt bodies only
//	"none" or "0" or "false" or "" - nothing
func parseAIDebugEnv() (debug bool, prompts bool) {
	switch strings.TrimSpace(strings.ToLower(os.Getenv("AUTOFIX_AI_DEBUG"))) {
	case "all", "1", "true":
		return true, true
	case "prompts":
		return false, true
	}
	return false, false
}

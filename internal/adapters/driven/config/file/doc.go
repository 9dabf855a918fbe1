// Package file provides file-based configuration and prompt storage.
//
// Configuration lives in a TOML file under the intakebrief config
// directory (~/.intakebrief/config.toml by default). Prompts are plain
// text files under ~/.intakebrief/prompts/, created with defaults on
// first use and watched for edits so changes apply without a restart.
package file

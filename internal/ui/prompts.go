// Package ui holds the interactive prompt helpers behind accord init.
package ui

import (
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

func defaultStdio() terminal.Stdio {
	return terminal.Stdio{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// PromptDefault prompts for input, falling back to defaultValue on an empty
// answer.
func PromptDefault(label, defaultValue string) (string, error) {
	return PromptDefaultWithStdio(label, defaultValue, defaultStdio())
}

// PromptOptional prompts for input that may be left empty.
func PromptOptional(label string) (string, error) {
	return PromptOptionalWithStdio(label, defaultStdio())
}

// PromptSecret prompts for sensitive input with masking. An empty answer is
// allowed; not every deployment sets a Redis password.
func PromptSecret(label string) (string, error) {
	return PromptSecretWithStdio(label, defaultStdio())
}

// PromptConfirm prompts for a yes/no answer.
func PromptConfirm(label string, defaultYes bool) (bool, error) {
	return PromptConfirmWithStdio(label, defaultYes, defaultStdio())
}

// PromptSelect prompts for one choice from a list.
func PromptSelect(label string, options []string) (string, error) {
	return PromptSelectWithStdio(label, options, defaultStdio())
}

// WithStdio variants take explicit stdio so tests can drive the prompts
// through a virtual terminal.

// PromptDefaultWithStdio is PromptDefault over custom stdio.
func PromptDefaultWithStdio(label, defaultValue string, stdio terminal.Stdio) (string, error) {
	var value string
	prompt := &survey.Input{
		Message: label,
		Default: defaultValue,
	}

	err := survey.AskOne(prompt, &value, survey.WithStdio(stdio.In, stdio.Out, stdio.Err))
	if err != nil {
		return defaultValue, err
	}
	if value == "" {
		return defaultValue, nil
	}
	return value, nil
}

// PromptOptionalWithStdio is PromptOptional over custom stdio.
func PromptOptionalWithStdio(label string, stdio terminal.Stdio) (string, error) {
	var value string
	prompt := &survey.Input{
		Message: label,
	}

	err := survey.AskOne(prompt, &value, survey.WithStdio(stdio.In, stdio.Out, stdio.Err))
	return value, err
}

// PromptSecretWithStdio is PromptSecret over custom stdio.
func PromptSecretWithStdio(label string, stdio terminal.Stdio) (string, error) {
	var value string
	prompt := &survey.Password{
		Message: label,
	}

	err := survey.AskOne(prompt, &value, survey.WithStdio(stdio.In, stdio.Out, stdio.Err))
	return value, err
}

// PromptConfirmWithStdio is PromptConfirm over custom stdio.
func PromptConfirmWithStdio(label string, defaultYes bool, stdio terminal.Stdio) (bool, error) {
	var value bool
	prompt := &survey.Confirm{
		Message: label,
		Default: defaultYes,
	}

	err := survey.AskOne(prompt, &value, survey.WithStdio(stdio.In, stdio.Out, stdio.Err))
	return value, err
}

// PromptSelectWithStdio is PromptSelect over custom stdio.
func PromptSelectWithStdio(label string, options []string, stdio terminal.Stdio) (string, error) {
	var value string
	prompt := &survey.Select{
		Message: label,
		Options: options,
	}

	err := survey.AskOne(prompt, &value, survey.WithStdio(stdio.In, stdio.Out, stdio.Err))
	return value, err
}

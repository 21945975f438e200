package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

// substituteCommandVariables replaces placeholders in command strings.
// {tmp} is the scenario directory and {scene:NAME} a generated frame.
func (testCtx *TestContext) substituteCommandVariables(command string) string {
	command = strings.ReplaceAll(command, "{tmp}", testCtx.TempDir)
	for name, path := range testCtx.Scenes {
		command = strings.ReplaceAll(command, "{scene:"+name+"}", path)
	}
	return command
}

// iRunCommand executes a command in the scenario directory and stores the result.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)
	testCtx.LastCommand = command
	testCtx.LastStartTime = time.Now()

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}
	if parts[0] == "boardcmp" {
		parts[0] = binaryPath()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = testCtx.TempDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	testCtx.LastStdout = stdout.String()
	testCtx.LastOutput = stdout.String() + stderr.String()
	testCtx.LastError = err
	testCtx.LastDuration = time.Since(testCtx.LastStartTime)

	if err != nil {
		exitError := &exec.ExitError{}
		if errors.As(err, &exitError) {
			testCtx.LastExitCode = exitError.ExitCode()
		} else {
			testCtx.LastExitCode = -1
		}
	} else {
		testCtx.LastExitCode = 0
	}
	return nil
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldContain verifies the output contains specific text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldNotContain verifies the output lacks specific text.
func (testCtx *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output unexpectedly contains '%s'\nActual output: %s", text, testCtx.LastOutput)
	}
	return nil
}

// lastJSON parses stdout of the last command.
func (testCtx *TestContext) lastJSON() (map[string]interface{}, error) {
	out := strings.TrimSpace(testCtx.LastStdout)
	if out == "" {
		return nil, fmt.Errorf("no output on stdout\nOutput: %s", testCtx.LastOutput)
	}
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(out), &data); err != nil {
		return nil, fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, out)
	}
	return data, nil
}

// theOutputShouldBeValidJSON verifies stdout is a JSON object.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	_, err := testCtx.lastJSON()
	return err
}

// theJSONShouldContain verifies JSON contains a specific field.
func (testCtx *TestContext) theJSONShouldContain(field string) error {
	data, err := testCtx.lastJSON()
	if err != nil {
		return err
	}
	_, err = lookupField(data, field)
	return err
}

// theJSONFieldShouldBe compares a field's string form with want.
func (testCtx *TestContext) theJSONFieldShouldBe(field, want string) error {
	data, err := testCtx.lastJSON()
	if err != nil {
		return err
	}
	return fieldEquals(data, field, want)
}

// theJSONFieldShouldBeGreaterThan checks a numeric field.
func (testCtx *TestContext) theJSONFieldShouldBeGreaterThan(field string, bound float64) error {
	data, err := testCtx.lastJSON()
	if err != nil {
		return err
	}
	return fieldGreater(data, field, bound)
}

// lookupField follows a dotted path through nested objects.
func lookupField(data map[string]interface{}, field string) (interface{}, error) {
	parts := strings.Split(field, ".")
	var cur interface{} = data
	for i, part := range parts {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("cannot navigate into non-object field '%s'", strings.Join(parts[:i], "."))
		}
		val, exists := obj[part]
		if !exists {
			return nil, fmt.Errorf("field '%s' not found in JSON", strings.Join(parts[:i+1], "."))
		}
		cur = val
	}
	return cur, nil
}

func fieldEquals(data map[string]interface{}, field, want string) error {
	val, err := lookupField(data, field)
	if err != nil {
		return err
	}
	var got string
	switch v := val.(type) {
	case string:
		got = v
	case float64:
		got = strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		got = strconv.FormatBool(v)
	default:
		b, _ := json.Marshal(v)
		got = string(b)
	}
	if got != want {
		return fmt.Errorf("field '%s' is %q, expected %q", field, got, want)
	}
	return nil
}

func fieldGreater(data map[string]interface{}, field string, bound float64) error {
	val, err := lookupField(data, field)
	if err != nil {
		return err
	}
	n, ok := val.(float64)
	if !ok {
		return fmt.Errorf("field '%s' is not a number: %v", field, val)
	}
	if n <= bound {
		return fmt.Errorf("field '%s' is %v, expected more than %v", field, n, bound)
	}
	return nil
}

// theFileShouldExist checks a path relative to the scenario directory.
func (testCtx *TestContext) theFileShouldExist(filename string) error {
	if _, err := os.Stat(testCtx.path(filename)); err != nil {
		return fmt.Errorf("file %s does not exist: %w", filename, err)
	}
	return nil
}

// theFileShouldNotExist checks a path is absent.
func (testCtx *TestContext) theFileShouldNotExist(filename string) error {
	if _, err := os.Stat(testCtx.path(filename)); err == nil {
		return fmt.Errorf("file %s exists", filename)
	}
	return nil
}

// theFileShouldContain verifies a file's content.
func (testCtx *TestContext) theFileShouldContain(filename, expected string) error {
	data, err := os.ReadFile(testCtx.path(filename))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if !strings.Contains(string(data), expected) {
		return fmt.Errorf("file %s does not contain '%s'\nContent: %s", filename, expected, data)
	}
	return nil
}

// aFileWithContent writes a file into the scenario directory.
func (testCtx *TestContext) aFileWithContent(filename string, content *godog.DocString) error {
	return os.WriteFile(testCtx.path(filename), []byte(content.Content), 0o600)
}

// theEnvironmentVariableIsSetTo adds an environment variable for later commands.
func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	testCtx.AddEnvVar(name, value)
	return nil
}

// theOutputShouldContainUsageInformation checks for cobra help output.
func (testCtx *TestContext) theOutputShouldContainUsageInformation() error {
	for _, want := range []string{"Usage:", "Flags:"} {
		if err := testCtx.theOutputShouldContain(want); err != nil {
			return err
		}
	}
	return nil
}

// RegisterCommonSteps registers command, output, file and environment steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)

	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the output should contain usage information$`, testCtx.theOutputShouldContainUsageInformation)
	sc.Step(`^the JSON should contain "([^"]*)"$`, testCtx.theJSONShouldContain)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONFieldShouldBe)
	sc.Step(`^the JSON field "([^"]*)" should be greater than (\d+(?:\.\d+)?)$`, testCtx.theJSONFieldShouldBeGreaterThan)

	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should not exist$`, testCtx.theFileShouldNotExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^a file "([^"]*)" with content:$`, testCtx.aFileWithContent)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)
}

package support

import (
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// theErrorShouldMention verifies the error output contains specific text.
func (testCtx *TestContext) theErrorShouldMention(errorText string) error {
	if testCtx.LastError == nil && testCtx.LastExitCode == 0 {
		return fmt.Errorf("no error occurred, but expected error containing '%s'", errorText)
	}

	fullErrorText := testCtx.LastOutput
	if testCtx.LastError != nil {
		fullErrorText += " " + testCtx.LastError.Error()
	}
	if !strings.Contains(strings.ToLower(fullErrorText), strings.ToLower(errorText)) {
		return fmt.Errorf("error does not contain '%s'\nActual error: %s", errorText, fullErrorText)
	}
	return nil
}

// theExitCodeShouldBe verifies the process exit status.
func (testCtx *TestContext) theExitCodeShouldBe(code int) error {
	if testCtx.LastExitCode != code {
		return fmt.Errorf("exit code %d, expected %d\nOutput: %s", testCtx.LastExitCode, code, testCtx.LastOutput)
	}
	return nil
}

// theErrorShouldNameMissingMarkers checks the incomplete-capture message.
func (testCtx *TestContext) theErrorShouldNameMissingMarkers() error {
	if err := testCtx.theErrorShouldMention("incomplete fiducial set"); err != nil {
		return err
	}
	return testCtx.theErrorShouldMention("missing")
}

// RegisterErrorSteps registers error-related step definitions.
func (testCtx *TestContext) RegisterErrorSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the exit code should be (\d+)$`, testCtx.theExitCodeShouldBe)
	sc.Step(`^the error should name the missing markers$`, testCtx.theErrorShouldNameMissingMarkers)
}

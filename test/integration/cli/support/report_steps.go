package support

import (
	"fmt"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/boardcmp/internal/report"
)

// theReportShouldHavePages checks the page count of a written PDF.
func (testCtx *TestContext) theReportShouldHavePages(filename string, want int) error {
	n, err := report.PageCount(testCtx.path(filename))
	if err != nil {
		return fmt.Errorf("failed to read report %s: %w", filename, err)
	}
	if n != want {
		return fmt.Errorf("report %s has %d pages, expected %d", filename, n, want)
	}
	return nil
}

// theReportShouldHaveAtLeastPages checks a lower bound on the page count.
func (testCtx *TestContext) theReportShouldHaveAtLeastPages(filename string, want int) error {
	n, err := report.PageCount(testCtx.path(filename))
	if err != nil {
		return fmt.Errorf("failed to read report %s: %w", filename, err)
	}
	if n < want {
		return fmt.Errorf("report %s has %d pages, expected at least %d", filename, n, want)
	}
	return nil
}

// RegisterReportSteps registers PDF report checks.
func (testCtx *TestContext) RegisterReportSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the report "([^"]*)" should have (\d+) pages$`, testCtx.theReportShouldHavePages)
	sc.Step(`^the report "([^"]*)" should have at least (\d+) pages$`, testCtx.theReportShouldHaveAtLeastPages)
}

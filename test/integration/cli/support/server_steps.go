package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/boardcmp/internal/calibration"
	"github.com/MeKo-Tech/boardcmp/internal/pipeline"
	"github.com/MeKo-Tech/boardcmp/internal/server"
)

// HTTPTestServerWrapper wraps an in-process server for request-level steps.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
}

// createTestHTTPServer starts the real handlers over a file-backed
// calibration store in the scenario directory.
func (testCtx *TestContext) createTestHTTPServer(maxConcurrent int) error {
	p, err := pipeline.NewBuilder().
		WithStore(calibration.NewFileStore(testCtx.path(calibration.DefaultPath))).
		WithOutputDir("").
		Build()
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	srv, err := server.NewServer(server.Config{
		CORSOrigin:    "*",
		MaxUploadMB:   10,
		TimeoutSec:    30,
		MaxConcurrent: maxConcurrent,
		Pipeline:      p,
	})
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	testCtx.HTTPTestServer = &HTTPTestServerWrapper{Server: httptest.NewServer(mux), TestServer: srv}
	return nil
}

func (testCtx *TestContext) aTestServerIsRunning() error {
	return testCtx.createTestHTTPServer(2)
}

func (testCtx *TestContext) baseURL() (string, error) {
	if testCtx.HTTPTestServer != nil {
		return testCtx.HTTPTestServer.Server.URL, nil
	}
	if testCtx.ServerProcess != nil {
		return fmt.Sprintf("http://%s:%d", testCtx.ServerHost, testCtx.ServerPort), nil
	}
	return "", errors.New("no server is running")
}

func (testCtx *TestContext) do(req *http.Request) error {
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = body
	testCtx.LastHTTPContentType = resp.Header.Get("Content-Type")
	testCtx.LastHTTPHeaders = make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

// iGET issues a GET request against the running server.
func (testCtx *TestContext) iGET(endpoint string) error {
	base, err := testCtx.baseURL()
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, base+endpoint, nil)
	if err != nil {
		return err
	}
	return testCtx.do(req)
}

// postFiles uploads files under the given multipart fields.
func (testCtx *TestContext) postFiles(endpoint string, fields [][2]string) error {
	base, err := testCtx.baseURL()
	if err != nil {
		return err
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range fields {
		data, err := os.ReadFile(f[1]) //nolint:gosec // G304: generated test frame
		if err != nil {
			return err
		}
		part, err := mw.CreateFormFile(f[0], filepath.Base(f[1]))
		if err != nil {
			return err
		}
		if _, err := part.Write(data); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, base+endpoint, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return testCtx.do(req)
}

func (testCtx *TestContext) scenePath(name string) (string, error) {
	p, ok := testCtx.Scenes[name]
	if !ok {
		return "", fmt.Errorf("unknown scene %q (are the synthetic board frames available?)", name)
	}
	return p, nil
}

// iPOSTTheSceneTo uploads one generated frame as a capture.
func (testCtx *TestContext) iPOSTTheSceneTo(scene, endpoint string) error {
	p, err := testCtx.scenePath(scene)
	if err != nil {
		return err
	}
	return testCtx.postFiles(endpoint, [][2]string{{"frame", p}})
}

// iPOSTTheSceneToWithFormat uploads a frame and selects the response format.
func (testCtx *TestContext) iPOSTTheSceneToWithFormat(scene, endpoint, format string) error {
	return testCtx.iPOSTTheSceneTo(scene, endpoint+"?format="+format)
}

// iPOSTReferenceAndTestTo uploads two files from the scenario directory for comparison.
func (testCtx *TestContext) iPOSTReferenceAndTestTo(ref, test, endpoint string) error {
	return testCtx.postFiles(endpoint, [][2]string{{"reference", testCtx.path(ref)}, {"test", testCtx.path(test)}})
}

// theResponseStatusShouldBe verifies the HTTP status.
func (testCtx *TestContext) theResponseStatusShouldBe(want int) error {
	if testCtx.LastHTTPStatusCode != want {
		return fmt.Errorf("status %d, expected %d\nBody: %s", testCtx.LastHTTPStatusCode, want, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) responseJSON() (map[string]interface{}, error) {
	var data map[string]interface{}
	if err := json.Unmarshal(testCtx.LastHTTPResponse, &data); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w\nBody: %s", err, testCtx.LastHTTPResponse)
	}
	return data, nil
}

// theResponseJSONFieldShouldBe compares a response field's string form.
func (testCtx *TestContext) theResponseJSONFieldShouldBe(field, want string) error {
	data, err := testCtx.responseJSON()
	if err != nil {
		return err
	}
	return fieldEquals(data, field, want)
}

// theResponseJSONFieldShouldBeGreaterThan checks a numeric response field.
func (testCtx *TestContext) theResponseJSONFieldShouldBeGreaterThan(field string, bound float64) error {
	data, err := testCtx.responseJSON()
	if err != nil {
		return err
	}
	return fieldGreater(data, field, bound)
}

// theResponseShouldBeAPNGImage checks the content type and PNG signature.
func (testCtx *TestContext) theResponseShouldBeAPNGImage() error {
	if testCtx.LastHTTPContentType != "image/png" {
		return fmt.Errorf("content type %q, expected image/png", testCtx.LastHTTPContentType)
	}
	if !bytes.HasPrefix(testCtx.LastHTTPResponse, []byte("\x89PNG\r\n\x1a\n")) {
		return errors.New("response body is not a PNG image")
	}
	return nil
}

// theResponseShouldContain checks the raw body.
func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(string(testCtx.LastHTTPResponse), text) {
		return fmt.Errorf("response does not contain %q", text)
	}
	return nil
}

// accessControlAllowOriginShouldBe checks the CORS header.
func (testCtx *TestContext) accessControlAllowOriginShouldBe(origin string) error {
	if got := testCtx.LastHTTPHeaders["Access-Control-Allow-Origin"]; got != origin {
		return fmt.Errorf("Access-Control-Allow-Origin is %q, expected %q", got, origin)
	}
	return nil
}

// freePort asks the kernel for an unused TCP port.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// iStartTheServerOnAFreePort runs "boardcmp serve" as a separate process.
func (testCtx *TestContext) iStartTheServerOnAFreePort() error {
	port, err := freePort()
	if err != nil {
		return err
	}
	testCtx.ServerPort = port
	testCtx.ServerHost = "127.0.0.1"

	cmd := exec.Command(binaryPath(), "serve", "--host", testCtx.ServerHost, "--port", strconv.Itoa(port), "--shutdown-timeout", "5") //nolint:gosec // G204: test binary
	cmd.Dir = testCtx.TempDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	testCtx.ServerProcess = cmd.Process
	return testCtx.waitForServerReady()
}

func (testCtx *TestContext) waitForServerReady() error {
	url := fmt.Sprintf("http://%s:%d/health", testCtx.ServerHost, testCtx.ServerPort)
	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url) //nolint:noctx // readiness probe
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("server did not become ready on port %d", testCtx.ServerPort)
}

// iSendSIGTERMToTheServer asks the server process to shut down and waits for it.
func (testCtx *TestContext) iSendSIGTERMToTheServer() error {
	if testCtx.ServerProcess == nil {
		return errors.New("no server process is running")
	}
	if err := testCtx.ServerProcess.Signal(syscall.SIGTERM); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		state, err := testCtx.ServerProcess.Wait()
		if err == nil && !state.Success() {
			err = fmt.Errorf("server exited with %s", state)
		}
		done <- err
	}()
	select {
	case err := <-done:
		testCtx.ServerProcess = nil
		return err
	case <-time.After(10 * time.Second):
		return errors.New("server did not shut down within 10s")
	}
}

// theServerShouldStopListening verifies the port is closed.
func (testCtx *TestContext) theServerShouldStopListening() error {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", testCtx.ServerHost, testCtx.ServerPort), time.Second)
	if err == nil {
		_ = conn.Close()
		return errors.New("server is still accepting connections")
	}
	return nil
}

// RegisterServerSteps registers HTTP server step definitions.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a test server is running$`, testCtx.aTestServerIsRunning)
	sc.Step(`^a test server is running with max concurrency (\d+)$`, testCtx.createTestHTTPServer)
	sc.Step(`^I start the server on a free port$`, testCtx.iStartTheServerOnAFreePort)
	sc.Step(`^I send SIGTERM to the server$`, testCtx.iSendSIGTERMToTheServer)
	sc.Step(`^the server should stop listening for new requests$`, testCtx.theServerShouldStopListening)

	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I POST the scene "([^"]*)" to "([^"]*)"$`, testCtx.iPOSTTheSceneTo)
	sc.Step(`^I POST the scene "([^"]*)" to "([^"]*)" with format "([^"]*)"$`, testCtx.iPOSTTheSceneToWithFormat)
	sc.Step(`^I POST reference "([^"]*)" and test "([^"]*)" to "([^"]*)"$`, testCtx.iPOSTReferenceAndTestTo)

	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseJSONFieldShouldBe)
	sc.Step(`^the response JSON field "([^"]*)" should be greater than (\d+(?:\.\d+)?)$`, testCtx.theResponseJSONFieldShouldBeGreaterThan)
	sc.Step(`^the response should be a PNG image$`, testCtx.theResponseShouldBeAPNGImage)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^Access-Control-Allow-Origin should be "([^"]*)"$`, testCtx.accessControlAllowOriginShouldBe)
}

package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	cInf  = color.New(color.FgCyan, color.Bold).SprintFunc()
	cWarn = color.New(color.FgYellow, color.Bold).SprintFunc()
	cErr  = color.New(color.FgRed, color.Bold).SprintFunc()
	cSucc = color.New(color.FgGreen, color.Bold).SprintFunc()
	cFatl = color.New(color.BgRed, color.FgWhite, color.Bold).SprintFunc()
	cTime = color.New(color.FgHiBlack).SprintFunc()
)

var (
	mu     sync.Mutex
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func init() {
	log.SetFlags(0)
}

// SetOutput redirects info-level and error-level lines. Passing io.Discard
// for both silences the logger (used by tests and the CLI).
func SetOutput(out, errOut io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	stdout = out
	stderr = errOut
}

// Writer returns the current info-level writer.
func Writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return stdout
}

func timeStamp() string {
	return cTime(time.Now().Format("2006-01-02 15:04:05"))
}

func write(w func() io.Writer, tag string, format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	fmt.Fprintf(w(), "%s %s %s\n", timeStamp(), tag, msg)
}

func errW() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return stderr
}

func LogInfo(format string, v ...interface{}) {
	write(Writer, cInf("[INFO]"), format, v...)
}

func LogSuccess(format string, v ...interface{}) {
	write(Writer, cSucc("[OK]"), format, v...)
}

func LogWarn(format string, v ...interface{}) {
	write(Writer, cWarn("[WARN]"), format, v...)
}

func LogError(format string, v ...interface{}) {
	write(errW, cErr("[ERR]"), format, v...)
}

// LogFatal prints the message and terminates the process.
func LogFatal(format string, v ...interface{}) {
	write(errW, cFatl("[FATAL]"), format, v...)
	os.Exit(1)
}

func LogServerStart(port int, baseURL string, env string) {
	w := Writer()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "   %s  %s\n", cSucc("⚡ School Directory is up"), cTime("waiting for requests..."))
	fmt.Fprintf(w, "   %s  %s\n", cInf("➜ Local:"), fmt.Sprintf("http://localhost:%d", port))
	fmt.Fprintf(w, "   %s  %s\n", cInf("➜ API:"), color.New(color.FgHiBlue, color.Underline).Sprint(baseURL+"/api"))
	fmt.Fprintf(w, "   %s  %s\n", cInf("➜ Health:"), baseURL+"/health")
	fmt.Fprintf(w, "   %s  %s\n", cInf("➜ Env:"), env)
	fmt.Fprintln(w)
}

package browser

import (
	"io/ioutil"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/wirepair/gcd/v2"
)

var startupFlags = []string{
	"--enable-automation",
	"--test-type",
	"--disable-client-side-phishing-detection",
	"--disable-component-update",
	"--disable-infobars",
	"--disable-domain-reliability",
	"--disable-background-networking",
	"--disable-sync",
	"--disable-new-browser-first-run",
	"--disable-default-apps",
	"--disable-popup-blocking",
	"--disable-extensions",
	"--disable-features=TranslateUI",
	"--disable-gpu",
	"--disable-dev-shm-usage",
	"--no-first-run",
	"--window-size=1024,768",
	"--safebrowsing-disable-auto-update",
	"--password-store=basic",
	"about:blank",
}

var chromeNames = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
}

// Leaser starts and stops local chrome processes
type Leaser struct {
	browserLock *sync.RWMutex
	browsers    map[string]*gcd.Gcd
	flags       []string
	tmp         string
	chromePath  string
}

// NewLeaser for chrome at chromePath, if empty the usual install locations are searched
func NewLeaser(chromePath string) *Leaser {
	l := &Leaser{
		browserLock: &sync.RWMutex{},
		browsers:    make(map[string]*gcd.Gcd),
		flags:       append([]string(nil), startupFlags...),
	}
	found, tmp := FindChrome()
	l.tmp = tmp
	l.chromePath = chromePath
	if l.chromePath == "" {
		l.chromePath = found
	}
	log.Debug().Str("chrome", l.chromePath).Str("tmp", l.tmp).Msg("chrome leaser created")
	return l
}

// ChromePath the leaser starts
func (l *Leaser) ChromePath() string {
	return l.chromePath
}

func (l *Leaser) SetHeadless() {
	l.flags = append(l.flags, "--headless")
}

// Acquire a new browser, returns the debugger and the port it listens on
func (l *Leaser) Acquire() (*gcd.Gcd, string, error) {
	if l.chromePath == "" {
		return nil, "", errors.New("no chrome binary found")
	}

	profileDir, err := ioutil.TempDir(l.tmp, "profile")
	if err != nil {
		return nil, "", errors.Wrap(err, "creating profile dir")
	}
	port, err := freePort()
	if err != nil {
		return nil, "", err
	}

	b := gcd.NewChromeDebugger()
	b.DeleteProfileOnExit()
	b.AddFlags(l.flags)
	log.Info().Str("profile", profileDir).Str("port", port).Msg("starting chrome")
	if err := b.StartProcess(l.chromePath, profileDir, port); err != nil {
		return nil, "", errors.Wrapf(err, "starting %s", l.chromePath)
	}

	l.browserLock.Lock()
	l.browsers[port] = b
	l.browserLock.Unlock()
	return b, port, nil
}

// Count how many browsers are running
func (l *Leaser) Count() int {
	l.browserLock.RLock()
	defer l.browserLock.RUnlock()
	return len(l.browsers)
}

// Return (and kill) the browser
func (l *Leaser) Return(port string) error {
	l.browserLock.Lock()
	defer l.browserLock.Unlock()

	b, ok := l.browsers[port]
	if !ok {
		return errors.Errorf("browser on port %s not found", port)
	}
	delete(l.browsers, port)
	return b.ExitProcess()
}

// Cleanup kills every leased browser and removes left over profiles
func (l *Leaser) Cleanup() error {
	l.browserLock.Lock()
	for port, b := range l.browsers {
		if err := b.ExitProcess(); err != nil {
			log.Warn().Err(err).Str("port", port).Msg("failed to exit chrome")
		}
		delete(l.browsers, port)
	}
	l.browserLock.Unlock()

	if l.tmp == "" || l.tmp == os.TempDir() {
		return errors.New("refusing to remove an unset or shared tmp directory")
	}
	return os.RemoveAll(l.tmp)
}

// FindChrome returns the first chrome binary found and the tmp directory
// profiles are created in. The path is empty if none was found.
func FindChrome() (string, string) {
	tmp := filepath.Join(os.TempDir(), "xhrwatcher")
	if err := os.MkdirAll(tmp, 0700); err != nil {
		log.Warn().Err(err).Msg("failed to create tmp directory")
	}

	if env := os.Getenv("CHROME_PATH"); env != "" {
		return env, tmp
	}

	for _, name := range chromeNames {
		if path, err := exec.LookPath(name); err == nil {
			return path, tmp
		}
	}

	var candidates []string
	switch runtime.GOOS {
	case "darwin":
		candidates = []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "windows":
		candidates = []string{
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		}
	default:
		candidates = []string{
			"/usr/bin/google-chrome",
			"/usr/bin/chromium",
			"/snap/bin/chromium",
		}
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, tmp
		}
	}
	return "", tmp
}

func freePort() (string, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", errors.Wrap(err, "finding free port")
	}
	defer l.Close()
	return strconv.Itoa(l.Addr().(*net.TCPAddr).Port), nil
}

package jsrt_test

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/xhrwatcher/intercept"
	"gitlab.com/xhrwatcher/jsrt"
	"gitlab.com/xhrwatcher/mock"
	"gitlab.com/xhrwatcher/observers/completion"
	"gitlab.com/xhrwatcher/xhrw"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testServer() (string, *http.Server) {
	router := gin.New()
	router.GET("/ok", func(c *gin.Context) {
		c.Header("X-Test", "yes")
		c.String(http.StatusOK, "hello")
	})
	router.GET("/missing", func(c *gin.Context) {
		c.String(http.StatusNotFound, "nope")
	})
	testListener, _ := net.Listen("tcp", "127.0.0.1:0")
	srv := &http.Server{
		Addr:    testListener.Addr().String(),
		Handler: router,
	}
	go func() {
		if err := srv.Serve(testListener); err != http.ErrServerClosed {
			log.Fatalf("Serve(): %s", err)
		}
	}()

	return "http://" + testListener.Addr().String(), srv
}

func newRuntime(t *testing.T, base string) (*jsrt.Runtime, *intercept.Interceptor) {
	bctx := mock.MakeMockContext(context.Background())
	ic := intercept.New(bctx)
	rt, err := jsrt.New(bctx, ic)
	if err != nil {
		t.Fatalf("error creating runtime: %s\n", err)
	}
	if _, err := rt.RunScript("base.js", fmt.Sprintf("var base = %q; var seen = [];", base)); err != nil {
		t.Fatalf("error setting base: %s\n", err)
	}
	return rt, ic
}

func wait(t *testing.T, rt *jsrt.Runtime) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rt.Wait(ctx); err != nil {
		t.Fatalf("requests did not settle: %s\n", err)
	}
}

func seen(t *testing.T, rt *jsrt.Runtime) string {
	v, err := rt.RunScript("seen.js", "seen.join(',')")
	if err != nil {
		t.Fatalf("error reading seen: %s\n", err)
	}
	return v.(string)
}

func TestJSObserversInOrder(t *testing.T) {
	base, srv := testServer()
	defer srv.Shutdown(context.Background())
	rt, _ := newRuntime(t, base)
	defer rt.Close()

	_, err := rt.RunScript("observers.js", `
		addXMLRequestCallback(function (xhr) { seen.push("A"); });
		addXMLRequestCallback(function (xhr) { seen.push("B"); });
		var x = new XMLHttpRequest();
		x.open("GET", base + "/ok");
		x.send();
		var y = new XMLHttpRequest();
		y.open("GET", base + "/ok");
		y.send();
	`)
	if err != nil {
		t.Fatalf("error running script: %s\n", err)
	}
	wait(t, rt)

	if s := seen(t, rt); s != "A,B,A,B" {
		t.Fatalf("expected A,B,A,B got %s", s)
	}
}

func TestCompletionPattern(t *testing.T) {
	base, srv := testServer()
	defer srv.Shutdown(context.Background())
	rt, _ := newRuntime(t, base)
	defer rt.Close()

	_, err := rt.RunScript("completion.js", `
		addXMLRequestCallback(function (xhr) {
			seen.push("dispatch:" + xhr.readyState);
			xhr.addEventListener("load", function () {
				if (xhr.readyState == 4 && xhr.status == 200) {
					seen.push("ok:" + xhr.response + ":" + xhr.getResponseHeader("x-test"));
				} else {
					seen.push("ignored:" + xhr.status);
				}
			});
		});
		["/ok", "/missing"].forEach(function (p) {
			var x = new XMLHttpRequest();
			x.open("GET", base + p);
			x.send();
		});
	`)
	if err != nil {
		t.Fatalf("error running script: %s\n", err)
	}
	wait(t, rt)

	s := seen(t, rt)
	if s != "dispatch:1,dispatch:1,ok:hello:yes,ignored:404" && s != "dispatch:1,dispatch:1,ignored:404,ok:hello:yes" {
		t.Fatalf("unexpected sequence %s", s)
	}
}

func TestThrowingJSObserver(t *testing.T) {
	base, srv := testServer()
	defer srv.Shutdown(context.Background())
	rt, ic := newRuntime(t, base)
	defer rt.Close()

	_, err := rt.RunScript("throwing.js", `
		addXMLRequestCallback(function (xhr) { throw new Error("observer bug"); });
		addXMLRequestCallback(function (xhr) { seen.push("B"); });
		var x = new XMLHttpRequest();
		x.onload = function () { seen.push("loaded:" + x.status); };
		x.open("GET", base + "/ok");
		x.send();
	`)
	if err != nil {
		t.Fatalf("observer failure leaked into the script: %s\n", err)
	}
	wait(t, rt)

	if s := seen(t, rt); s != "B,loaded:200" {
		t.Fatalf("expected B,loaded:200 got %s", s)
	}
	if ic.Failures() != 1 {
		t.Fatalf("expected one isolated failure, got %d", ic.Failures())
	}
}

func TestGoAndJSObservers(t *testing.T) {
	base, srv := testServer()
	defer srv.Shutdown(context.Background())
	rt, ic := newRuntime(t, base)
	defer rt.Close()

	order := make([]string, 0)
	ic.Register(func(req xhrw.Request) { order = append(order, "go") })
	reporter := mock.MakeMockReporter()
	ic.Register(completion.New(reporter))

	_, err := rt.RunScript("mixed.js", `
		addXMLRequestCallback(function (xhr) { seen.push("js"); });
		var x = new XMLHttpRequest();
		x.open("GET", base + "/ok");
		x.send();
	`)
	if err != nil {
		t.Fatalf("error running script: %s\n", err)
	}
	wait(t, rt)

	if len(order) != 1 || seen(t, rt) != "js" {
		t.Fatalf("expected both go and js observers to run once")
	}
	if reporter.Count() != 1 || string(reporter.Reports[0].Payload) != "hello" {
		t.Fatalf("expected completion report for the js request")
	}
}

func TestUserscriptPatchComposes(t *testing.T) {
	base, srv := testServer()
	defer srv.Shutdown(context.Background())
	rt, ic := newRuntime(t, base)
	defer rt.Close()

	goSeen := 0
	ic.Register(func(req xhrw.Request) { goSeen++ })

	// a script that patches send itself, layered on top of the Go trampoline
	_, err := rt.RunScript("userscript.js", `
		(function () {
			var oldSend = XMLHttpRequest.prototype.send;
			XMLHttpRequest.prototype.send = function () {
				seen.push("patched");
				oldSend.apply(this, arguments);
			};
		})();
		var x = new XMLHttpRequest();
		x.open("GET", base + "/ok");
		x.send();
	`)
	if err != nil {
		t.Fatalf("error running script: %s\n", err)
	}
	wait(t, rt)

	if seen(t, rt) != "patched" || goSeen != 1 {
		t.Fatalf("expected the js patch and the go trampoline to both run once")
	}
}

func TestScriptErrors(t *testing.T) {
	rt, _ := newRuntime(t, "http://127.0.0.1:1")
	defer rt.Close()

	if _, err := rt.RunScript("bad.js", "addXMLRequestCallback(1)"); err == nil {
		t.Fatalf("expected type error for non function callback")
	}
	if _, err := rt.RunScript("send.js", "new XMLHttpRequest().send()"); err == nil {
		t.Fatalf("expected invalid state error for send before open")
	}
	v, err := rt.RunScript("caught.js", `
		var msg = "";
		try { var x = new XMLHttpRequest(); x.open("GET", "ftp://nowhere"); } catch (e) { msg = "caught"; }
		msg
	`)
	if err != nil || v.(string) != "caught" {
		t.Fatalf("expected catchable open error, got %v %v", v, err)
	}
}

func TestInstallConflict(t *testing.T) {
	bctx := mock.MakeMockContext(context.Background())
	ic := intercept.New(bctx)
	ic.Install(mock.MakeMockHost())
	if _, err := jsrt.New(bctx, ic); err == nil {
		t.Fatalf("expected error when the interceptor already wraps another host")
	}
}

func TestSendFromObserver(t *testing.T) {
	base, srv := testServer()
	defer srv.Shutdown(context.Background())
	rt, _ := newRuntime(t, base)
	defer rt.Close()

	_, err := rt.RunScript("nested.js", `
		var followed = false;
		addXMLRequestCallback(function (xhr) {
			seen.push("observed");
			if (followed) {
				return;
			}
			followed = true;
			var f = new XMLHttpRequest();
			f.onload = function () { seen.push("follow:" + f.status); };
			f.open("GET", base + "/ok");
			f.send();
		});
		var x = new XMLHttpRequest();
		x.open("GET", base + "/ok");
		x.send();
	`)
	if err != nil {
		t.Fatalf("error running script: %s\n", err)
	}
	wait(t, rt)

	if s := seen(t, rt); s != "observed,observed,follow:200" {
		t.Fatalf("expected the nested send to be observed and complete, got %s", s)
	}
}

func TestWaitForChainedSends(t *testing.T) {
	base, srv := testServer()
	defer srv.Shutdown(context.Background())

	for i := 0; i < 20; i++ {
		rt, _ := newRuntime(t, base)
		_, err := rt.RunScript("chain.js", `
			var count = 0;
			function next(remaining) {
				var x = new XMLHttpRequest();
				x.onloadend = function () {
					count++;
					if (remaining > 1) {
						next(remaining - 1);
					}
				};
				x.open("GET", base + "/ok");
				x.send();
			}
			next(5);
		`)
		if err != nil {
			t.Fatalf("error running script: %s\n", err)
		}
		wait(t, rt)

		v, err := rt.RunScript("count.js", "count")
		if err != nil {
			t.Fatalf("error reading count: %s\n", err)
		}
		if v.(int64) != 5 {
			t.Fatalf("run %d: wait returned after %v of 5 chained requests", i, v)
		}
		rt.Close()
	}
}

package browser

import (
	"strconv"
	"strings"
)

// installer runs before any page script. It installs one trampoline on
// XMLHttpRequest.prototype.send no matter how often it is evaluated, keeps
// callbacks in registration order and posts completed requests to the
// binding.
const installer = `(function (global) {
	"use strict";
	var binding = "__BINDING__";
	var successStatus = __STATUS__;
	var XHR = global.XMLHttpRequest;
	if (!XHR || !XHR.prototype) {
		return;
	}

	var state = XHR.prototype.__xhrwatcher;
	if (!state) {
		state = { callbacks: [], send: XHR.prototype.send, open: XHR.prototype.open, reporting: false };
		Object.defineProperty(XHR.prototype, "__xhrwatcher", { value: state, enumerable: false });

		XHR.prototype.open = function (method, url) {
			var result = state.open.apply(this, arguments);
			Object.defineProperty(this, "__xhrwMethod", { value: String(method).toUpperCase(), configurable: true });
			Object.defineProperty(this, "__xhrwURL", { value: String(url), configurable: true });
			return result;
		};

		XHR.prototype.send = function () {
			var callbacks = state.callbacks.slice();
			for (var i = 0; i < callbacks.length; i++) {
				try {
					callbacks[i](this);
				} catch (e) {
					if (global.console && global.console.warn) {
						global.console.warn("xhr callback failed: " + e);
					}
				}
			}
			return state.send.apply(this, arguments);
		};

		global.addXMLRequestCallback = function (callback) {
			if (typeof callback !== "function") {
				throw new TypeError("addXMLRequestCallback expects a function");
			}
			state.callbacks.push(callback);
		};
	}

	if (state.reporting) {
		return;
	}
	state.reporting = true;

	global.addXMLRequestCallback(function (xhr) {
		xhr.addEventListener("load", function () {
			if (xhr.readyState != 4 || xhr.status != successStatus) {
				return;
			}
			var post = global[binding];
			if (typeof post !== "function") {
				return;
			}
			var body = "";
			try {
				body = xhr.responseText;
			} catch (e) {
				body = "";
			}
			post(JSON.stringify({
				method: xhr.__xhrwMethod || "",
				url: xhr.responseURL || xhr.__xhrwURL || "",
				status: xhr.status,
				contentType: xhr.getResponseHeader("content-type") || "",
				response: body
			}));
		});
	});
})(this);`

// Script returns the interception script posting to binding for requests
// completing with status
func Script(binding string, status int) string {
	return strings.NewReplacer(
		"__BINDING__", binding,
		"__STATUS__", strconv.Itoa(status),
	).Replace(installer)
}

package jsrt

// prelude defines XMLHttpRequest on top of the native bindings. It evaluates
// to a function taking the global object and the native object.
const prelude = `(function (global, native) {
	"use strict";

	var states = ["UNSENT", "OPENED", "HEADERS_RECEIVED", "LOADING", "DONE"];

	function XMLHttpRequest() {
		this.readyState = 0;
		this.status = 0;
		this.statusText = "";
		this.response = "";
		this.responseText = "";
		this.responseURL = "";
		this.onreadystatechange = null;
		this.onloadstart = null;
		this.onload = null;
		this.onerror = null;
		this.onloadend = null;
		Object.defineProperty(this, "__listeners", { value: {}, enumerable: false });
		Object.defineProperty(this, "__id", { value: native.create(this), enumerable: false });
	}

	for (var i = 0; i < states.length; i++) {
		XMLHttpRequest[states[i]] = i;
		XMLHttpRequest.prototype[states[i]] = i;
	}

	XMLHttpRequest.prototype.open = function (method, url) {
		native.open(this.__id, String(method), String(url));
	};

	XMLHttpRequest.prototype.setRequestHeader = function (name, value) {
		native.setRequestHeader(this.__id, String(name), String(value));
	};

	XMLHttpRequest.prototype.send = function (body) {
		native.send(this.__id, body === undefined || body === null ? null : String(body));
	};

	XMLHttpRequest.prototype.getResponseHeader = function (name) {
		return native.getResponseHeader(this.__id, String(name));
	};

	XMLHttpRequest.prototype.addEventListener = function (type, fn) {
		if (typeof fn !== "function") {
			return;
		}
		if (!this.__listeners[type]) {
			this.__listeners[type] = [];
		}
		this.__listeners[type].push(fn);
	};

	XMLHttpRequest.prototype.removeEventListener = function (type, fn) {
		var list = this.__listeners[type];
		if (!list) {
			return;
		}
		var idx = list.indexOf(fn);
		if (idx >= 0) {
			list.splice(idx, 1);
		}
	};

	XMLHttpRequest.prototype.__dispatch = function (type) {
		var evt = { type: type, target: this, currentTarget: this };
		var list = (this.__listeners[type] || []).slice();
		var handler = this["on" + type];
		if (typeof handler === "function") {
			list.push(handler);
		}
		for (var i = 0; i < list.length; i++) {
			try {
				list[i].call(this, evt);
			} catch (e) {
				native.listenerError(this.__id, type, String(e));
			}
		}
	};

	global.XMLHttpRequest = XMLHttpRequest;

	global.addXMLRequestCallback = function (callback) {
		native.addCallback(callback);
	};
})`

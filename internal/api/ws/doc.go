/*
Package ws serves the /stream WebSocket: the event channel and the invoke
channel of the terminal host.

Clients send JSON messages:

	{"type":"invoke","request_id":"1","cmd":"pty_spawn","args":{"id":"a","cols":80,"rows":24}}
	{"type":"subscribe","event":"term-data:a"}
	{"type":"unsubscribe","event":"term-data:a"}
	{"type":"ping"}

and receive:

	{"type":"result","request_id":"1","ok":true,"data":{...}}
	{"type":"result","request_id":"2","ok":false,"error":"...","code":"invalid_argument"}
	{"type":"event","event":"term-data:a","payload":{"id":"a","data":"..."}}
	{"type":"pong"}

Subscribing to "*" delivers every event. The Hub is the terminal.Sink the
session manager publishes into; each connection has a bounded queue and a
connection that falls behind is disconnected instead of stalling other
sessions.
*/
package ws

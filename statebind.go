// Package statebind is a headless binding client: it keeps a page's bound
// elements synchronized with state held by a server, over one persistent
// websocket connection.
//
// The client runs four cooperating parts:
//  1. Connection manager - opens ws(s)://<page host>/ws and reopens it 3s after
//     every close, forever
//  2. Codec - JSON text frames tagged by "type"
//  3. Dispatcher - applies state_update to data-bind-text, data-bind-value
//     (skipped while focused) and data-bind-checked elements
//  4. Listener - turns edits of bound inputs into state_set commands
//
// Application events are sent with Client.SendEvent.
package statebind

package main

import (
    "net/http"
)

func serveChatPage(w http.ResponseWriter) {
    w.Header().Set("Content-Type", "text/html")
    w.WriteHeader(http.StatusOK)
    w.Write([]byte(chat_page))
}

const chat_page = `<html>
    <head>
        <title> Chat rooms </title>
        <meta charset="utf-8" name="viewport" />

        <style>
            body {
                padding-left: 10%;
                padding-right: 10%;
                font-size: large;
                font-family: monospace;
            }
            div {
                display: flex;
                flex-direction: row;
                align-items: baseline;
                margin-bottom: 0.25em;
            }
            input.button {
                height: 2em;
                font-size: large;
            }
            input.textbox {
                width: 90%;
                margin-right: 0.25em;
                margin-top: 0.25em;
                height: 2em;
                font-size: large;
            }
            div.textbox {
                display: block;
                width: 95%;
                height: 75%;
                margin-top: 0.25em;
                overflow-y: scroll;
                border: solid;
                padding: 1em;
            }
        </style>

        <script>
            let ws = null;

            let appendMsg = function(msg) {
                let chat = document.getElementById('chat');
                let p = document.createElement('p');
                p.textContent = msg;
                chat.appendChild(p);
                chat.scrollTo(0, chat.scrollHeight);
            }

            let wsRecv = function(e) {
                appendMsg(e.data);
            }

            let wsClose = function(e) {
                appendMsg('-- connection closed --');
                ws = null;
            }

            let connect = function() {
                if (ws != null) {
                    ws.close()
                    ws = null;
                }

                let proto = (window.location.protocol == 'https:') ? 'wss://' : 'ws://';
                ws = new WebSocket(proto + window.location.host + '/ws')
                ws.addEventListener('message', wsRecv)
                ws.addEventListener('close', wsClose)
            }

            let send = function() {
                let mfield = document.getElementById('message');

                if (ws == null) {
                    appendMsg('-- not connected --');
                    return;
                }

                // Empty lines are never sent: the server only ever
                // emits those (as the room list terminator).
                let msg = mfield.value;
                if (msg == '') {
                    return;
                }

                ws.send(msg);
                mfield.value = '';
            }

            let on_boot = function (e) {
                let mfield = document.getElementById('message');
                mfield.addEventListener('keyup', function (e) {
                    if (event.key == 'Enter') {
                        send();
                    }
                });
                connect();
            }
            document.addEventListener('DOMContentLoaded', on_boot);
        </script>
    </head>

    <body>
        <div>
            <input class='button' onclick="connect();" type="button" value="Reconnect">
        </div>

        <div class='textbox' id='chat'> </div>

        <div>
            <input class='textbox' type='text' id='message' name='message'>
            <input class='button' onclick="send();" type="button" value="Send">
        </div>
    </body>
</html>`

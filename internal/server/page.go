package server

import "net/http"

// ChatPage serves the built-in chat client. It offers login and registration
// forms and, once a session cookie is present, connects to the WebSocket
// endpoint and renders presence and chat events.
func (h *Handler) ChatPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(chatPageHTML))
}

const chatPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Parley</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; max-width: 720px; }
        #messages {
            border: 1px solid #ccc;
            height: 320px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"], input[type="password"] { padding: 5px; margin-right: 6px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
        .presence { color: #555; font-style: italic; }
        form { display: inline-block; margin-right: 20px; }
    </style>
</head>
<body>
    <h1>Parley</h1>

    <div>
        <form method="POST" action="/login">
            <input type="text" name="username" placeholder="Username">
            <input type="password" name="password" placeholder="Password">
            <button type="submit">Log in</button>
        </form>
        <form method="POST" action="/register">
            <input type="text" name="username" placeholder="Username">
            <input type="password" name="password" placeholder="Password">
            <button type="submit">Register</button>
        </form>
        <form method="POST" action="/logout"><button type="submit">Log out</button></form>
        <a href="/auth/github">Log in with GitHub</a>
    </div>

    <div id="status" class="status disconnected">Disconnected</div>
    <div>Users online: <span id="userCount">0</span></div>

    <div id="messages"></div>

    <div>
        <input type="text" id="messageInput" placeholder="Type a message..." disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
        <button onclick="connect()">Connect</button>
    </div>

    <script>
        let ws = null;
        const messagesDiv = document.getElementById('messages');
        const messageInput = document.getElementById('messageInput');
        const sendButton = document.getElementById('sendButton');
        const statusDiv = document.getElementById('status');
        const userCountSpan = document.getElementById('userCount');

        function addLine(text, cls) {
            const el = document.createElement('div');
            el.textContent = text;
            if (cls) el.className = cls;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function connect() {
            if (ws) return;
            const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(proto + location.host + '/ws');

            ws.onopen = function() {
                statusDiv.textContent = 'Connected';
                statusDiv.className = 'status connected';
                messageInput.disabled = false;
                sendButton.disabled = false;
            };

            ws.onmessage = function(e) {
                const frame = JSON.parse(e.data);
                if (frame.event === 'user count') {
                    userCountSpan.textContent = frame.data;
                } else if (frame.event === 'user') {
                    const d = frame.data;
                    addLine(d.username + (d.connected ? ' joined' : ' left') +
                        ' (' + d.currentUsers + ' online)', 'presence');
                    userCountSpan.textContent = d.currentUsers;
                } else if (frame.event === 'chat message') {
                    addLine(frame.data.username + ': ' + frame.data.message);
                }
            };

            ws.onclose = function() {
                ws = null;
                statusDiv.textContent = 'Disconnected';
                statusDiv.className = 'status disconnected';
                messageInput.disabled = true;
                sendButton.disabled = true;
            };
        }

        function sendMessage() {
            if (!ws || !messageInput.value) return;
            ws.send(JSON.stringify({event: 'chat message', data: {message: messageInput.value}}));
            messageInput.value = '';
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') sendMessage();
        });

        connect();
    </script>
</body>
</html>
`

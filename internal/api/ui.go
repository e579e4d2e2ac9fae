package api

import (
	"net/http"
)

const consoleHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>FNOL Simulator</title>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: monospace;
            background: #1a1a2e;
            color: #eee;
            height: 100vh;
            display: flex;
            flex-direction: column;
        }
        header {
            background: #16213e;
            padding: 12px 20px;
            border-bottom: 1px solid #0f3460;
            display: flex;
            justify-content: space-between;
            align-items: center;
            gap: 12px;
        }
        header h1 { font-size: 16px; font-weight: normal; }
        #conn { padding: 4px 10px; border-radius: 4px; font-size: 12px; }
        #conn.connected { background: #1b4332; color: #95d5b2; }
        #conn.disconnected { background: #7f1d1d; color: #fca5a5; }
        #conn.connecting { background: #78350f; color: #fcd34d; }
        .controls { display: flex; gap: 6px; align-items: center; }
        button {
            background: #0f3460;
            color: #eee;
            border: 1px solid #1f4f8f;
            border-radius: 4px;
            padding: 4px 10px;
            font-family: monospace;
            cursor: pointer;
        }
        button:hover { background: #1f4f8f; }
        main { flex: 1; display: flex; overflow: hidden; }
        #canvas { flex: 1; overflow: auto; }
        svg { min-width: 100%; min-height: 100%; }
        .node rect { fill: #16213e; stroke: #0f3460; stroke-width: 2; rx: 6; }
        .node.active rect { stroke: #fcd34d; fill: #3b2f0b; }
        .node.done rect { stroke: #95d5b2; fill: #1b4332; }
        .node text { fill: #eee; font-size: 11px; }
        .node .msg { fill: #fcd34d; font-size: 10px; }
        .node .note { fill: #95d5b2; font-size: 10px; font-style: italic; }
        .edge { stroke: #555; stroke-width: 1.5; fill: none; }
        .edge.highlighted { stroke: #fcd34d; stroke-width: 3; }
        aside {
            width: 340px;
            background: #16213e;
            border-left: 1px solid #0f3460;
            display: flex;
            flex-direction: column;
        }
        #summary { padding: 12px; font-size: 12px; line-height: 1.6; border-bottom: 1px solid #0f3460; }
        #log { flex: 1; overflow-y: auto; padding: 8px; font-size: 11px; }
        .entry { padding: 4px 6px; margin-bottom: 3px; border-left: 3px solid #0f3460; background: #1a1a2e; }
        .entry .ts { color: #888; }
    </style>
</head>
<body>
    <header>
        <h1>FNOL Simulator</h1>
        <div class="controls">
            <button onclick="control('play')">Play</button>
            <button onclick="control('pause')">Pause</button>
            <button onclick="control('step')">Step</button>
            <button onclick="control('reset')">Reset</button>
            <button onclick="speed(-0.25)">-</button>
            <span id="speed">1.00x</span>
            <button onclick="speed(0.25)">+</button>
            <button onclick="post('/api/layout/auto', {})">Auto layout</button>
            <label><input type="checkbox" id="lock" onchange="post('/api/layout/lock', {locked: this.checked})"> Lock</label>
        </div>
        <span id="conn" class="connecting">Connecting...</span>
    </header>
    <main>
        <div id="canvas"><svg id="graph"></svg></div>
        <aside>
            <div id="summary"></div>
            <div id="log"></div>
        </aside>
    </main>
    <script>
        const W = 170, H = 56;
        let ws = null;
        let reconnectDelay = 1000;
        let current = { speed: 1 };

        function connect() {
            setConn('connecting');
            const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
            ws = new WebSocket(proto + '//' + location.host + '/ws');
            ws.onopen = () => { setConn('connected'); reconnectDelay = 1000; loadLog(); };
            ws.onclose = () => {
                setConn('disconnected');
                setTimeout(connect, reconnectDelay);
                reconnectDelay = Math.min(reconnectDelay * 2, 30000);
            };
            ws.onmessage = (msg) => {
                const m = JSON.parse(msg.data);
                if (m.type === 'frame') {
                    draw(m.frame);
                    summary(m.status);
                } else if (m.type === 'event' && m.event.event === 'log.appended') {
                    loadLog();
                }
            };
        }

        function setConn(state) {
            const el = document.getElementById('conn');
            el.className = state;
            el.textContent = state.charAt(0).toUpperCase() + state.slice(1);
        }

        function esc(s) {
            const d = document.createElement('div');
            d.textContent = s == null ? '' : String(s);
            return d.innerHTML;
        }

        function draw(frame) {
            const pos = {};
            let maxX = 0, maxY = 0;
            frame.nodes.forEach(n => {
                pos[n.id] = n.position;
                maxX = Math.max(maxX, n.position.x + W);
                maxY = Math.max(maxY, n.position.y + H + 80);
            });
            let out = '';
            frame.edges.forEach(e => {
                const a = pos[e.source], b = pos[e.target];
                if (!a || !b) return;
                out += '<line class="edge' + (e.highlighted ? ' highlighted' : '') + '" x1="' + (a.x + W) + '" y1="' + (a.y + H / 2) +
                    '" x2="' + b.x + '" y2="' + (b.y + H / 2) + '"/>';
            });
            frame.nodes.forEach(n => {
                out += '<g class="node ' + esc(n.status) + '" data-id="' + esc(n.id) + '" transform="translate(' + n.position.x + ',' + n.position.y + ')">';
                out += '<rect width="' + W + '" height="' + H + '"/>';
                out += '<text x="8" y="18">' + esc(n.label) + '</text>';
                out += '<text x="8" y="34" fill="#888">' + esc(n.status) + '</text>';
                const notes = n.notes || [];
                notes.forEach((m, i) => {
                    out += '<text class="note" x="8" y="' + (H + 14 + i * 12) + '">' + esc(m.slice(0, 40)) + '</text>';
                });
                (n.messages || []).forEach((m, i) => {
                    out += '<text class="msg" x="8" y="' + (H + 14 + (notes.length + i) * 12) + '">' + esc(m.slice(0, 40)) + '</text>';
                });
                out += '</g>';
            });
            const svg = document.getElementById('graph');
            svg.setAttribute('width', maxX + 40);
            svg.setAttribute('height', maxY + 40);
            svg.innerHTML = out;
            frame.nodes.forEach(n => { if (n.draggable) enableDrag(n.id); });
        }

        function enableDrag(id) {
            const g = document.querySelector('g[data-id="' + CSS.escape(id) + '"]');
            if (!g) return;
            g.style.cursor = 'move';
            g.onmousedown = (down) => {
                const start = g.transform.baseVal.consolidate().matrix;
                const ox = down.clientX - start.e, oy = down.clientY - start.f;
                document.onmousemove = (mv) => {
                    g.setAttribute('transform', 'translate(' + (mv.clientX - ox) + ',' + (mv.clientY - oy) + ')');
                };
                document.onmouseup = (up) => {
                    document.onmousemove = null;
                    document.onmouseup = null;
                    post('/api/stages/' + encodeURIComponent(id) + '/position', { x: up.clientX - ox, y: up.clientY - oy });
                };
            };
        }

        function summary(st) {
            current = st;
            document.getElementById('speed').textContent = st.speed.toFixed(2) + 'x';
            document.getElementById('summary').innerHTML =
                'Mode: ' + esc(st.mode) + (st.complete ? ' (complete)' : '') + '<br>' +
                'Elapsed: ' + st.elapsed_seconds.toFixed(1) + 's<br>' +
                'Current: ' + esc(st.current_label || '-') + '<br>' +
                'Next: ' + esc(st.next_label || '-') + '<br>' +
                'Progress: ' + st.stages_done + ' / ' + st.stages_total;
        }

        function loadLog() {
            fetch('/api/log?order=desc').then(r => r.json()).then(lines => {
                document.getElementById('log').innerHTML = (lines || []).map(l =>
                    '<div class="entry"><span class="ts">' + esc(new Date(l.timestamp).toLocaleTimeString()) + '</span> ' +
                    esc((l.from_label ? l.from_label + ' -> ' : '') + l.to_label) + ' <span class="ts">(' + esc(l.reason) + ')</span></div>'
                ).join('');
            });
        }

        function post(url, body) {
            return fetch(url, {
                method: 'POST',
                headers: { 'Content-Type': 'application/json' },
                body: JSON.stringify(body)
            }).then(r => r.json()).then(res => {
                if (!res.ok) console.warn(url, res.error);
            });
        }

        function control(cmd) { post('/api/control/' + cmd, {}); }

        function speed(delta) {
            const next = Math.min(3, Math.max(0.25, (current.speed || 1) + delta));
            post('/api/control/speed', { multiplier: next });
        }

        connect();
    </script>
</body>
</html>
`

func (s *Server) uiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(consoleHTML))
}

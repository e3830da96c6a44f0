package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/heartbeat-haptic/internal/logic"
	"github.com/sweeney/heartbeat-haptic/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"bpm": func(v float64) string {
		return fmt.Sprintf("%.0f", v)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Heartbeat Haptic</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
button { font-family: monospace; font-size: 1em; padding: 0.5em 1em; }
.connected { color: green; }
.disconnected { color: red; }
.error { color: #b00; }
.heart { font-size: 5em; text-align: center; user-select: none; cursor: pointer; color: #c33; margin: 0.5em 0; }
.heart.engaged { animation: beat {{.IntervalMs}}ms infinite; }
@keyframes beat { 0% { transform: scale(1); } 15% { transform: scale(1.25); } 30% { transform: scale(1); } }
</style>
</head>
<body>
<h1>Heartbeat Haptic</h1>

<div id="view" data-view="{{.View}}">
{{- if eq .View "LOADING"}}
<p>Checking heart rate access&hellip;</p>
{{- else if eq .View "ERROR"}}
<p class="error">{{.ErrorKind.Message}}</p>
{{if .ErrorDetail}}<p class="error"><small>{{.ErrorDetail}}</small></p>{{end}}
<button onclick="act('/retry')">Retry</button>
{{- else if eq .View "UNAUTHORIZED"}}
<p>Heart rate access is required to feel your heartbeat.</p>
<button onclick="act('/authorize')">Grant access</button>
{{- else}}
<div id="heart" class="heart{{if .Engaged}} engaged{{end}}">&#9829;</div>
<p style="text-align:center">{{if .HasReading}}{{bpm .BPM}} bpm{{else}}waiting for a reading{{end}}</p>
<p style="text-align:center"><small>Hold the heart to feel it.</small></p>
{{- end}}
</div>

<h2>Session</h2>
<table>
<tr><th>Engaged</th><td>{{if .Engaged}}yes{{else}}no{{end}}</td></tr>
{{if .Engaged}}<tr><th>Session</th><td>{{.SessionID}}</td></tr>
<tr><th>Pulses</th><td>{{.SessionPulses}}</td></tr>{{end}}
<tr><th>Interval</th><td>{{.IntervalMs}}ms</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>Source</th><td class="{{if .SourceConnected}}connected{{else}}disconnected{{end}}">{{.Config.Source}} {{.Config.SourceAddr}} ({{if .SourceConnected}}connected{{else}}disconnected{{end}})</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Pulses</th><td>{{.Counts.Pulses}}</td></tr>
<tr><th>Sessions</th><td>{{.Counts.Sessions}}</td></tr>
<tr><th>Readings</th><td>{{.Counts.Readings}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var held = false;
  window.act = function(path) {
    fetch(path, { method: "POST" }).then(function() {
      if (!held) { setTimeout(function() { location.reload(); }, 300); }
    });
  };
  var heart = document.getElementById("heart");
  if (heart) {
    var down = function(e) { e.preventDefault(); if (!held) { held = true; heart.classList.add("engaged"); fetch("/press", { method: "POST" }); } };
    var up = function() { if (held) { held = false; heart.classList.remove("engaged"); fetch("/release", { method: "POST" }); } };
    heart.addEventListener("mousedown", down);
    heart.addEventListener("touchstart", down);
    heart.addEventListener("mouseup", up);
    heart.addEventListener("mouseleave", up);
    heart.addEventListener("touchend", up);
    heart.addEventListener("touchcancel", up);
  }
  setInterval(function() { if (!held) { location.reload(); } }, 5000);
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	data := struct {
		status.Snapshot
		Uptime     time.Duration
		IntervalMs int64
	}{
		Snapshot:   snap,
		Uptime:     snap.Uptime(),
		IntervalMs: logic.BeatInterval(snap.BPM).Milliseconds(),
	}
	indexTmpl.Execute(w, data)
}

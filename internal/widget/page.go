package widget

import (
	"html/template"
	"net/url"
	"strconv"

	"github.com/pefman/break-the-wall/internal/wall"
)

// ========================= Frontend (embedded) =========================

var statusMessages = map[wall.Status]string{
	wall.StatusReady:     "Click the wall once per day to help break it!",
	wall.StatusUsedToday: "👊 Daily punch used — see you tomorrow warrior!",
	wall.StatusComplete:  "🧱 The wall is broken. Thanks for smashing, warrior!",
}

// StatusMessage is the line shown under the wall for a status.
func StatusMessage(s wall.Status) string {
	return statusMessages[s]
}

// stageURL points at a stage image. The stage index in the query makes the
// browser fetch a fresh image whenever the stage changes.
func stageURL(asset string, stage int) string {
	u := url.URL{Path: "/stages/" + asset}
	q := url.Values{}
	q.Set("stage", strconv.Itoa(stage))
	u.RawQuery = q.Encode()
	return u.String()
}

type pageData struct {
	Snapshot wall.Snapshot
	Message  string
	ImageURL string
	Messages map[wall.Status]string
}

var pageTmpl = template.Must(template.New("wall").Parse(pageHTML))

const pageHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Break the Wall!</title>
  <style>
    *{box-sizing:border-box} html,body{margin:0;height:100%}
    body{display:flex;flex-direction:column;align-items:center;justify-content:center;min-height:100vh;background:#fff;padding:0 16px;text-align:center;overflow:hidden;font-family:ui-sans-serif,system-ui,-apple-system,Segoe UI,Roboto,Arial}
    h1{font-size:2.5rem;font-weight:700;margin:0 0 8px;color:#000}
    .tagline{margin:0 0 16px;font-size:1.125rem;color:#374151}
    .stage{position:relative;width:100%;max-width:600px;display:flex;justify-content:center}
    .wall-btn{all:unset;cursor:pointer;width:100%}
    .wall-btn[disabled]{cursor:default}
    .wall{width:100%;height:auto;border-radius:12px;box-shadow:0 10px 15px rgba(0,0,0,.1);object-fit:contain}
    .shake{animation:shake .25s ease}
    @keyframes shake{0%,100%{transform:translateX(0)}20%{transform:translateX(-8px)}40%{transform:translateX(8px)}60%{transform:translateX(-6px)}80%{transform:translateX(6px)}}
    .dust{position:absolute;top:50%;left:50%;width:12rem;height:12rem;margin:-6rem 0 0 -6rem;background:#9ca3af;border-radius:999px;filter:blur(40px);pointer-events:none;opacity:0}
    .dust.on{animation:dust .6s ease-out}
    @keyframes dust{from{transform:scale(0);opacity:.6}to{transform:scale(2.5);opacity:0}}
    .status{margin-top:20px;font-size:1.125rem;color:#374151}
    .status.used_today{color:#dc2626;font-weight:600}
    .status.complete{color:#166534;font-weight:600}
    .count{margin-top:6px;font-size:.9rem;color:#6b7280}
  </style>
</head>
<body>
  <h1>💥 Break the Wall!</h1>
  <p class="tagline">Smash it together — 1 punch per day.</p>

  <div class="stage">
    <form id="punch" method="post" action="/punch">
      <input type="hidden" name="tz" id="tz" value="" />
      <button class="wall-btn" type="submit" aria-label="Punch the wall"{{if ne .Snapshot.Status "ready"}} disabled{{end}}>
        <img id="wall" class="wall{{if .Snapshot.Shaking}} shake{{end}}" src="{{.ImageURL}}" alt="Wall" data-stage="{{.Snapshot.Stage}}" />
      </button>
    </form>
    <div id="dust" class="dust{{if .Snapshot.Dusting}} on{{end}}"></div>
  </div>

  <p id="status" class="status {{.Snapshot.Status}}">{{.Message}}</p>
  <p class="count"><span id="clicks">{{.Snapshot.Clicks}}</span> / {{.Snapshot.Max}}</p>

  <script>
  (function(){
    var state = {{.Snapshot}};
    var messages = {{.Messages}};
    var img = document.getElementById('wall');
    var btn = document.querySelector('.wall-btn');
    var tzInput = document.getElementById('tz');
    try { tzInput.value = Intl.DateTimeFormat().resolvedOptions().timeZone || ''; } catch (e) {}

    function setStage(stage, asset){
      if (String(stage) === img.dataset.stage) return;
      img.dataset.stage = String(stage);
      img.src = '/stages/' + encodeURIComponent(asset) + '?stage=' + stage;
    }
    function setStatus(status){
      var el = document.getElementById('status');
      el.className = 'status ' + status;
      el.textContent = messages[status] || '';
      btn.disabled = status !== 'ready';
    }
    function setClicks(n){
      state.clicks = n;
      document.getElementById('clicks').textContent = n;
      if (n >= state.max) setStatus('complete');
    }
    function play(){
      img.classList.remove('shake'); void img.offsetWidth; img.classList.add('shake');
      var dust = document.getElementById('dust');
      dust.classList.remove('on'); void dust.offsetWidth; dust.classList.add('on');
      setTimeout(function(){ img.classList.remove('shake'); }, 250);
      setTimeout(function(){ dust.classList.remove('on'); }, 600);
    }

    document.getElementById('punch').addEventListener('submit', function(ev){
      ev.preventDefault();
      if (btn.disabled) return;
      btn.disabled = true;
      play();
      fetch('/punch', {
        method: 'POST',
        headers: {'Accept': 'application/json', 'Content-Type': 'application/x-www-form-urlencoded'},
        body: 'tz=' + encodeURIComponent(tzInput.value)
      }).then(function(res){ return res.json(); }).then(function(s){
        setStage(s.stage, s.asset);
        setClicks(s.clicks);
        setStatus(s.status);
      }).catch(function(){ setStatus('used_today'); });
    });

    try {
      var ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
      ws.onmessage = function(ev){
        var msg = JSON.parse(ev.data);
        if (msg.type !== 'count' || msg.data.clicks <= state.clicks) return;
        setStage(msg.data.stage, msg.data.asset);
        setClicks(msg.data.clicks);
      };
    } catch (e) {}
  })();
  </script>
</body>
</html>`

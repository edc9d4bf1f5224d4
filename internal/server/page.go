package server

import "net/http"

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexPage))
}

const indexPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>CogniQuery</title>
<style>
body { font-family: sans-serif; max-width: 760px; margin: 2em auto; }
#chat { border: 1px solid #ccc; padding: 1em; min-height: 240px; }
.user { color: #123; font-weight: bold; }
.assistant { margin: 0.5em 0 1em; }
.sources { font-size: 0.85em; color: #666; }
#status { color: #666; font-style: italic; }
</style>
</head>
<body>
<h1>CogniQuery</h1>
<p>Upload a file (.pdf, .csv, .xlsx, .ods, .eml, .docx) or enter a URL, process it, then ask questions.</p>
<div>
  <input type="file" id="file">
  <input type="text" id="url" placeholder="or a website URL" size="40">
  <button onclick="processSource()">Process</button>
  <span id="status"></span>
</div>
<div id="chat"></div>
<div>
  <input type="text" id="question" placeholder="Ask a question about your data..." size="60">
  <button onclick="ask()">Ask</button>
</div>
<script>
let sessionID = null;
async function session() {
  if (sessionID) return sessionID;
  const res = await fetch('/api/sessions', {method: 'POST'});
  sessionID = (await res.json()).id;
  return sessionID;
}
function status(msg) { document.getElementById('status').textContent = msg; }
function append(cls, html) {
  const div = document.createElement('div');
  div.className = cls;
  div.innerHTML = html;
  document.getElementById('chat').appendChild(div);
}
async function processSource() {
  const id = await session();
  const file = document.getElementById('file').files[0];
  const url = document.getElementById('url').value.trim();
  status('Processing...');
  let res;
  if (file) {
    const form = new FormData();
    form.append('file', file);
    res = await fetch('/api/sessions/' + id + '/process', {method: 'POST', body: form});
  } else if (url) {
    res = await fetch('/api/sessions/' + id + '/process', {
      method: 'POST',
      headers: {'Content-Type': 'application/json'},
      body: JSON.stringify({url: url})
    });
  } else {
    status('Please choose a file or enter a URL.');
    return;
  }
  const body = await res.json();
  if (!res.ok) { status(body.error); return; }
  document.getElementById('chat').innerHTML = '';
  status('Processing complete (' + body.chunks + ' chunks). You can now ask questions.');
}
async function ask() {
  const id = await session();
  const q = document.getElementById('question').value.trim();
  if (!q) return;
  document.getElementById('question').value = '';
  append('user', q);
  status('Thinking...');
  const res = await fetch('/api/sessions/' + id + '/ask', {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({question: q})
  });
  const body = await res.json();
  if (!res.ok) { status(body.error); return; }
  status('');
  append('assistant', body.html || body.answer);
  if (body.sources.length === 0) {
    append('sources', 'No specific sources were retrieved.');
  } else {
    append('sources', 'Sources: ' + body.sources.map(s => 'page ' + s.page + ' (' + s.type + ')').join(', '));
  }
}
</script>
</body>
</html>
`

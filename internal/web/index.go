package web

// Single page with the market chart, the frontier scatter, the live book and the tutor chat.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Quantlab</title>
  <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
  <link href="https://fonts.googleapis.com/css2?family=Press+Start+2P&family=Space+Mono:wght@400;700&display=swap" rel="stylesheet">
  <style>
    :root { --bg:#ffffff; --ink:#111111; --ink-mid:#4d4d4d; --panel:#f6f6f6; --bid:#1b9aaa; --ask:#d7263d; }
    * { box-sizing:border-box; }
    body { margin:0; padding:2rem; background:var(--bg); color:var(--ink); font-family:'Space Mono',monospace; }
    #app { display:grid; grid-template-columns:1fr 380px; gap:2rem; max-width:1400px; margin:0 auto; }
    .panel { border:3px solid var(--ink); background:var(--panel); padding:1.2rem; box-shadow:8px 8px 0 rgba(0,0,0,.15); }
    .eyebrow { font-family:'Press Start 2P',monospace; font-size:.6rem; text-transform:uppercase; letter-spacing:.2em; margin:0 0 1rem; }
    .tabs button { font-family:inherit; border:2px solid var(--ink); background:#fff; padding:.3rem .8rem; cursor:pointer; }
    .tabs button.active { background:var(--ink); color:#fff; }
    table { width:100%; border-collapse:collapse; font-size:.7rem; }
    td { padding:.15rem .3rem; position:relative; }
    td.bar { width:40%; }
    td.bar span { position:absolute; top:2px; bottom:2px; right:0; opacity:.25; }
    .bid { color:var(--bid); } .ask { color:var(--ask); }
    .bid-bar { background:var(--bid); } .ask-bar { background:var(--ask); }
    .mid { text-align:center; font-weight:700; padding:.4rem; border-top:1px dashed var(--ink-mid); border-bottom:1px dashed var(--ink-mid); }
    #chat { height:360px; overflow-y:auto; font-size:.75rem; }
    .msg { margin:.5rem 0; padding:.5rem; border:2px solid var(--ink); background:#fff; white-space:pre-wrap; }
    .msg.user { border-color:var(--ink-mid); }
    .msg.fallback { border-style:dashed; color:var(--ink-mid); }
    form { display:flex; gap:.5rem; margin-top:.5rem; }
    input, select { font-family:inherit; border:2px solid var(--ink); padding:.3rem; }
    input { flex:1; }
    @media (max-width:900px) { #app { grid-template-columns:1fr; } }
  </style>
</head>
<body>
<div id="app">
  <main>
    <section class="panel">
      <p class="eyebrow">quantlab</p>
      <div class="tabs">
        <button data-view="market" class="active">Timing</button>
        <button data-view="frontier">Portfolio</button>
      </div>
      <canvas id="marketChart" height="320"></canvas>
      <canvas id="frontierChart" height="320" style="display:none"></canvas>
    </section>
  </main>
  <aside>
    <section class="panel">
      <p class="eyebrow">order book</p>
      <table id="asks"></table>
      <div id="mid" class="mid">connecting...</div>
      <table id="bids"></table>
    </section>
    <section class="panel" style="margin-top:2rem">
      <p class="eyebrow">tutor</p>
      <div id="chat"></div>
      <form id="ask">
        <input id="question" placeholder="Ask about Kalman filters, CML, VWAP..." autocomplete="off" />
        <select id="lang"><option value="en">EN</option><option value="zh">中文</option></select>
      </form>
    </section>
  </aside>
</div>
<script>
Chart.defaults.font.family = "'Space Mono', monospace";
Chart.defaults.font.size = 11;

const line = (label, data, color, dash) => ({ label, data, borderColor:color, borderWidth:dash ? 1 : 2, borderDash:dash ? [4,4] : [], pointRadius:0, spanGaps:false, fill:false });

async function loadMarket(){
  const res = await fetch('/api/series');
  const body = await res.json();
  const pts = body.points;
  new Chart(document.getElementById('marketChart'), {
    type:'line',
    data:{
      labels:pts.map(p => p.date),
      datasets:[
        line('Price', pts.map(p => p.price), '#111111'),
        line('Kalman', pts.map(p => p.filteredEstimate), '#ff7f11'),
        line('SMA20', pts.map(p => p.shortMA ?? null), '#1b9aaa'),
        line('SMA50', pts.map(p => p.longMA ?? null), '#3c91e6'),
        line('Upper', pts.map(p => p.upperBand ?? null), '#9c9c9c', true),
        line('Lower', pts.map(p => p.lowerBand ?? null), '#9c9c9c', true)
      ]
    },
    options:{ animation:false, interaction:{ intersect:false, mode:'index' } }
  });
}

async function loadFrontier(){
  const res = await fetch('/api/frontier');
  const f = await res.json();
  const xy = (p) => ({ x:p.risk, y:p.return });
  const datasets = [
    { type:'scatter', label:'Portfolios', data:f.cloud.map(xy), backgroundColor:'rgba(17,17,17,0.25)', pointRadius:2 },
    { type:'line', label:'Frontier', data:f.envelope.map(xy), borderColor:'#d7263d', borderWidth:2, pointRadius:0 },
    { type:'line', label:'CML', data:[xy(f.cml.from), xy(f.cml.to)], borderColor:'#1b9aaa', borderDash:[6,4], pointRadius:0 }
  ];
  if(f.maxRatio){
    datasets.push({ type:'scatter', label:'Max ratio', data:[xy(f.maxRatio)], backgroundColor:'#ff7f11', pointRadius:6 });
  }
  new Chart(document.getElementById('frontierChart'), {
    data:{ datasets },
    options:{ animation:false, scales:{ x:{ type:'linear', title:{ display:true, text:'Risk (σ)' } }, y:{ title:{ display:true, text:'Return' } } } }
  });
}

document.querySelectorAll('.tabs button').forEach((btn) => {
  btn.addEventListener('click', () => {
    document.querySelectorAll('.tabs button').forEach(b => b.classList.toggle('active', b === btn));
    document.getElementById('marketChart').style.display = btn.dataset.view === 'market' ? '' : 'none';
    document.getElementById('frontierChart').style.display = btn.dataset.view === 'frontier' ? '' : 'none';
  });
});

function renderSide(el, levels, cls, maxSize){
  el.innerHTML = '';
  levels.forEach((lvl) => {
    const row = el.insertRow();
    row.insertCell().textContent = lvl.price.toFixed(2);
    row.cells[0].className = cls;
    row.insertCell().textContent = lvl.size;
    row.insertCell().textContent = lvl.total;
    const bar = row.insertCell();
    bar.className = 'bar';
    const fill = document.createElement('span');
    fill.className = cls + '-bar';
    fill.style.width = (maxSize ? (lvl.size / maxSize) * 100 : 0) + '%';
    bar.appendChild(fill);
  });
}

function connectBook(){
  const source = new EventSource('/orderbook/stream');
  source.addEventListener('book', (event) => {
    const book = JSON.parse(event.data);
    renderSide(document.getElementById('asks'), book.asks.slice().reverse(), 'ask', book.maxSize);
    renderSide(document.getElementById('bids'), book.bids, 'bid', book.maxSize);
    document.getElementById('mid').textContent = book.midPrice.toFixed(2) + '  spread ' + book.spread.toFixed(2);
  });
  source.addEventListener('error', () => {
    source.close();
    setTimeout(connectBook, 2000);
  });
}

const chat = document.getElementById('chat');
function appendMessage(msg){
  const div = document.createElement('div');
  div.className = 'msg ' + msg.role + (msg.fallback ? ' fallback' : '');
  div.textContent = msg.text;
  chat.appendChild(div);
  chat.scrollTop = chat.scrollHeight;
}

document.getElementById('ask').addEventListener('submit', async (e) => {
  e.preventDefault();
  const input = document.getElementById('question');
  const text = input.value.trim();
  if(!text){ return; }
  input.value = '';
  appendMessage({ role:'user', text });
  const res = await fetch('/api/tutor', {
    method:'POST',
    headers:{ 'Content-Type':'application/json' },
    body:JSON.stringify({ text, lang:document.getElementById('lang').value })
  });
  const body = await res.json();
  if(body.answer){ appendMessage(body.answer); } else { appendMessage({ role:'model', text:body.error, fallback:true }); }
});

loadMarket();
loadFrontier();
connectBook();
</script>
</body>
</html>`

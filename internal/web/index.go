package web

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>balancewatch</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; background: #111; color: #ddd; margin: 2rem; }
h1 { font-size: 1.2rem; color: #7D56F4; }
table { border-collapse: collapse; min-width: 30rem; }
th, td { padding: .35rem .8rem; text-align: right; border-bottom: 1px solid #333; }
th:first-child, td:first-child { text-align: left; }
tr.changed td { color: #73F59F; }
#status { font-size: .8rem; color: #888; margin-bottom: 1rem; }
</style>
</head>
<body>
<h1>Balances</h1>
<div id="status">connecting...</div>
<table>
<thead><tr><th>Asset</th><th>Free</th><th>Locked</th><th>Total</th></tr></thead>
<tbody id="rows"></tbody>
</table>
<script>
const balances = new Map();
let version = 0;

function render(changed){
  const rows = document.getElementById('rows');
  rows.innerHTML = '';
  [...balances.keys()].sort().forEach(asset => {
    const b = balances.get(asset);
    const tr = document.createElement('tr');
    if (changed.has(asset)) tr.className = 'changed';
    const total = (parseFloat(b.free) + parseFloat(b.locked)).toString();
    [asset, b.free, b.locked, total].forEach(v => {
      const td = document.createElement('td');
      td.textContent = v;
      tr.appendChild(td);
    });
    rows.appendChild(tr);
  });
  document.getElementById('status').textContent = 'version ' + version + ', ' + balances.size + ' assets';
}

function connectSSE(){
  const es = new EventSource('/balance/stream');
  es.addEventListener('snapshot', ev => {
    const payload = JSON.parse(ev.data);
    balances.clear();
    (payload.balances || []).forEach(e => balances.set(e.asset, e.balance));
    version = payload.version;
    render(new Set());
  });
  es.addEventListener('balance', ev => {
    const batch = JSON.parse(ev.data);
    if (batch.version <= version) return;
    if (batch.version > version + 1) {
      // missed a batch, reload the full snapshot
      es.close();
      setTimeout(connectSSE, 0);
      return;
    }
    const changed = new Set();
    if (batch.kind === 'snapshot') balances.clear();
    (batch.balances || []).forEach(b => { balances.set(b.asset, b); changed.add(b.asset); });
    version = batch.version;
    render(changed);
  });
  es.onerror = () => {
    document.getElementById('status').textContent = 'disconnected, retrying...';
  };
}

connectSSE();
</script>
</body>
</html>
`

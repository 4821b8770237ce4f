package testutil

// AppHTML is a single-page fixture application honouring the settings
// panel contract: an "Open Settings" button, a modal settings dialog
// labelled by #settings-title, labelled switches, a labelled
// #speed-threshold input and a "Sync Now" button that is only rendered
// when data logging and cloud sync are both enabled in localStorage.
//
// Query parameters alter its behaviour:
//
//	latency=<ms>   sync duration (default 500)
//	fault=<list>   comma-separated faults, see the Fault constants
const AppHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>Speed Assistant</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            margin: 0;
            background: #020617;
            color: #f8fafc;
        }
        main { padding: 24px; }
        h1 { font-size: 20px; margin: 0 0 12px; }
        #speed-readout { font-size: 64px; font-weight: 900; margin: 24px 0; }
        button { font: inherit; cursor: pointer; }
        button:disabled { cursor: not-allowed; opacity: 0.6; }
        #open-settings {
            position: fixed; top: 16px; right: 16px;
            width: 48px; height: 48px; border-radius: 24px;
            border: none; background: #1e293b; color: #fff;
        }
        .panel {
            position: fixed; left: 0; right: 0; bottom: 0;
            max-height: 90vh; overflow-y: auto;
            background: #0f172a; border-top: 1px solid rgba(255,255,255,0.1);
            border-radius: 32px 32px 0 0; padding: 24px;
            transform: translateY(100%);
            transition: transform 300ms ease-out;
        }
        .panel.open { transform: translateY(0); }
        .panel[hidden] { display: none; }
        .row { display: flex; justify-content: space-between; align-items: center; margin: 16px 0; }
        .row .desc { display: block; font-size: 12px; color: #64748b; }
        [role="switch"] {
            width: 56px; height: 32px; border-radius: 16px; border: none;
            background: #334155; position: relative;
        }
        [role="switch"][aria-checked="true"] { background: #2563eb; }
        #close-settings { border: none; background: none; color: #94a3b8; font-size: 24px; }
        #sync-now {
            padding: 6px 12px; border-radius: 8px; border: none;
            background: #10b981; color: #fff; font-weight: 900;
            text-transform: uppercase; font-size: 10px;
        }
    </style>
</head>
<body>
<main id="dashboard">
    <h1>Speed Assistant</h1>
    <p id="speed-readout">0 MPH</p>
    <button type="button" id="open-settings" aria-label="Open Settings">&#9881;</button>
</main>

<div id="settings-panel" class="panel" role="dialog" aria-modal="true" aria-labelledby="settings-title" hidden>
    <div class="row">
        <h2 id="settings-title">Settings</h2>
        <button type="button" id="close-settings" aria-label="Close Settings">&times;</button>
    </div>

    <div class="row">
        <label for="speed-threshold">Alert Buffer</label>
        <input id="speed-threshold" type="range" min="1" max="20" value="5">
    </div>

    <div class="row">
        <div><span id="alerts-label">Speed Alerts</span><span id="alerts-desc" class="desc">Audio chime over limit</span></div>
        <button type="button" role="switch" aria-checked="true" aria-labelledby="alerts-label" aria-describedby="alerts-desc" data-setting="alerts_enabled"></button>
    </div>
    <div class="row">
        <div><span id="chimes-label">Milestone Chimes</span><span id="chimes-desc" class="desc">Tone on limit changes</span></div>
        <button type="button" role="switch" aria-checked="true" aria-labelledby="chimes-label" aria-describedby="chimes-desc" data-setting="chimes_enabled"></button>
    </div>
    <div class="row">
        <div><span id="police-label">Police District</span><span id="police-desc" class="desc">Show local jurisdiction</span></div>
        <button type="button" role="switch" aria-checked="false" aria-labelledby="police-label" aria-describedby="police-desc" data-setting="show_police"></button>
    </div>
    <div class="row">
        <div><span id="logging-label">Auto-Log Routes</span><span id="logging-desc" class="desc">Save route metadata locally</span></div>
        <button type="button" role="switch" aria-checked="false" aria-labelledby="logging-label" aria-describedby="logging-desc" data-setting="data_logging_enabled"></button>
    </div>
    <div class="row">
        <div><span id="cloud-label">Google Drive Cloud</span><span id="cloud-desc" class="desc">Mirror data to personal cloud storage</span></div>
        <button type="button" role="switch" aria-checked="false" aria-labelledby="cloud-label" aria-describedby="cloud-desc" data-setting="cloud_sync_enabled"></button>
    </div>

    <div class="row" id="cloud-sync" hidden>
        <span>Logs Stored: 0 Files</span>
        <button type="button" id="sync-now">Sync Now</button>
    </div>
</div>

<script>
(function () {
    const params = new URLSearchParams(window.location.search);
    const faults = (params.get('fault') || '').split(',').filter(Boolean);
    const latency = parseInt(params.get('latency') || '500', 10);
    const has = (f) => faults.indexOf(f) !== -1;

    const panel = document.getElementById('settings-panel');
    const syncRow = document.getElementById('cloud-sync');
    const syncBtn = document.getElementById('sync-now');
    const switches = () => Array.from(document.querySelectorAll('[role="switch"]'));

    if (has('broken-label')) {
        switches()[0].setAttribute('aria-labelledby', 'missing-label');
    }
    if (has('blank-label')) {
        document.getElementById('chimes-label').textContent = '';
    }
    if (has('no-switches')) {
        switches().forEach((s) => s.closest('.row').remove());
    }
    if (has('no-label')) {
        document.querySelector('label[for="speed-threshold"]').remove();
    }
    if (has('not-modal')) {
        panel.setAttribute('aria-modal', 'false');
    }
    if (has('unnamed-close')) {
        document.getElementById('close-settings').removeAttribute('aria-label');
    }

    function enabled(key) {
        return localStorage.getItem(key) === 'true';
    }

    function render() {
        switches().forEach((s) => {
            const key = s.dataset.setting;
            if (localStorage.getItem(key) !== null) {
                s.setAttribute('aria-checked', String(enabled(key)));
            }
        });
        syncRow.hidden = !(enabled('data_logging_enabled') && enabled('cloud_sync_enabled'));
    }

    document.getElementById('open-settings').addEventListener('click', () => {
        panel.hidden = false;
        requestAnimationFrame(() => requestAnimationFrame(() => panel.classList.add('open')));
    });

    document.getElementById('close-settings').addEventListener('click', () => {
        panel.classList.remove('open');
        panel.hidden = true;
    });

    switches().forEach((s) => s.addEventListener('click', () => {
        const next = s.getAttribute('aria-checked') !== 'true';
        localStorage.setItem(s.dataset.setting, String(next));
        render();
    }));

    syncBtn.addEventListener('click', () => {
        if (has('skip-transient')) {
            syncBtn.textContent = 'Synced!';
        } else {
            syncBtn.textContent = 'Syncing...';
            syncBtn.disabled = true;
        }
        setTimeout(() => {
            syncBtn.disabled = false;
            syncBtn.textContent = 'Synced!';
            setTimeout(() => { syncBtn.textContent = 'Sync Now'; }, 3000);
        }, latency);
    });

    render();
})();
</script>
</body>
</html>
`

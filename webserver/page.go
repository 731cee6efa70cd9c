package webserver

import "github.com/mnehpets/loopback/middleware"

// SaveTokenPath is where the landing page posts the URL fragment.
const SaveTokenPath = "/save_token"

// SuccessMessage is the body returned for an accepted token.
const SuccessMessage = "Login Successful. Return to the Capture app."

// landingScript reposts the URL fragment, which never reaches the server on
// its own, as a form body.
const landingScript = `
document.addEventListener("DOMContentLoaded", function () {
  var status = document.getElementById("status");
  var params = new URLSearchParams(window.location.hash.substring(1));
  history.replaceState(null, "", window.location.pathname);
  fetch("` + SaveTokenPath + `", { method: "POST", body: params })
    .then(function (resp) {
      status.textContent = resp.ok
        ? "Login Successful, return to the Capture app."
        : "Login failed. Close this window and try again.";
    })
    .catch(function () {
      status.textContent = "Login failed. Close this window and try again.";
    });
});
`

// LandingPage is served unchanged for every request to the landing path.
const LandingPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Capture login</title>
<script>` + landingScript + `</script>
</head>
<body>
<p id="status">Completing login&hellip;</p>
</body>
</html>
`

// landingCSP allows only the inline landing script and same-origin fetches.
var landingCSP = middleware.CSP(
	"default-src 'none'",
	"script-src "+middleware.ScriptHashSource(landingScript),
	"connect-src 'self'",
	"base-uri 'none'",
	"form-action 'none'",
	"frame-ancestors 'none'",
)

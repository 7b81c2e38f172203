// Package web serves Experimenter over HTTP using echo.
//
// Server-rendered pages cover listing, creating, and editing experiments
// section by section, plus the detail page with its status, sign-off,
// comment, and archive forms. A JSON API under /api/v1 exposes experiments
// to Shield tooling and lets release management accept or reject shipped
// experiments. Dockerflow-style ops endpoints and Prometheus metrics are
// served without authentication.
//
// Identity is delegated to the fronting proxy: requests carry the user's
// email in a configured header, or a bearer JWT with an "email" claim when a
// signing secret is configured. Unknown users are created on first sight.
// Routes named in the auth whitelist skip the check entirely.
package web

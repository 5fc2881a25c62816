// Package health provides the liveness, readiness and version endpoints of
// the development server.
//
// # Endpoints
//
// Register mounts three handlers under the admin prefix:
//
//   - /health: Liveness probe, 200 while the process runs
//   - /ready: Readiness probe, 200 when every registered check passes and
//     503 otherwise
//   - /version: Build information
//
// # Checks
//
// Checks run concurrently, each bounded by the checker's timeout. The
// server registers:
//
//   - assets: the asset root exists (DirCheck)
//   - upstream: a TCP connection to the upstream can be opened (DialCheck)
//   - build: the most recent build succeeded and was published (BuildCheck)
//
// # Usage
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("assets", health.DirCheck(cfg.Assets.Root))
//	checker.RegisterCheck("upstream", health.DialCheck(cfg.Upstream.URL))
//	checker.RegisterCheck("build", health.BuildCheck(svc))
//	health.Register(mux, "/_webdev", checker, info)
package health

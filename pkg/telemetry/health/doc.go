// Package health serves the liveness and readiness probes.
//
// Liveness (GET /health) only reports that the process answers. Readiness
// (GET /health/ready) runs every registered check concurrently, each bounded
// by the checker timeout, and answers 503 when any of them fails:
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("files", registry.Ping)
//
//	{"status":"degraded","checks":{"files":{"status":"unhealthy","message":"database is locked","duration_ms":0.4}},"timestamp":1735689600}
package health

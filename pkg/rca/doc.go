// Package rca assembles a root-cause evidence package for an incident from
// the host's logs, resource usage and containers.
//
// Quick start:
//
//	r, err := rca.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	pkg, err := r.Diagnose(ctx, rca.Request{
//	    Mode:        rca.ModeBasic,
//	    Description: "database service failed to start",
//	    LogPath:     "/var/log/messages",
//	})
//	fmt.Println(pkg.Assessment.Level, pkg.Hypothesis) // high systemd
//
// Four modes trade depth for latency: Basic parses one file, Scan walks the
// conventional log locations, Quick classifies the description alone, and
// Triage gathers whatever it can under a hard deadline. The RCA instance is
// safe for concurrent use.
package rca

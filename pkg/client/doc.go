// Package client is the CyberSentinel Go SDK.
//
// It wraps the HTTP API served by sentinel-api: submitting a scenario for
// analysis, downloading the PDF report of a result, and reading case history
// and service health.
//
// # Analysing a scenario
//
//	c, err := client.New("http://localhost:8000")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rec, err := c.Analyze(ctx, "A user received an email asking them to reset their VPN password at vpn-reset.example.net")
//	if client.IsServiceUnavailable(err) {
//	    log.Fatal("the completion service is down")
//	}
//	fmt.Println(rec.CaseID, rec.Severity, rec.ThreatType)
//
// Analyze can take as long as the server's inference timeout (two minutes by
// default). The client's own timeout, DefaultTimeout, is set above that; use
// WithTimeout to change it.
//
// # Downloading a report
//
//	f, _ := os.Create("report.pdf")
//	defer f.Close()
//	name, err := c.GenerateReport(ctx, rec, f)
//	// name == "cybersentinel_report_<case_id>.pdf"
//
// CaseReport does the same for a case already stored on the server.
//
// # Case history
//
//	page, err := c.ListCases(ctx, 20, 0)
//	for _, r := range page.Cases {
//	    fmt.Println(r.CaseID, r.Timestamp)
//	}
//
// Stored cases are immutable, so GetCase results can be cached client-side
// with WithCacheTTL.
//
// # Errors
//
// Every non-2xx response is returned as *APIError carrying the status code
// and the server's error and detail fields.
package client

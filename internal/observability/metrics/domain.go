package metrics

// Deployment records a contract deployment attempt.
func Deployment(chain, status string) {
	if !enabled {
		return
	}
	deploymentTotal.WithLabelValues(chain, status).Inc()
}

// Compile records a solc compilation.
func Compile(status string) {
	if !enabled {
		return
	}
	compileTotal.WithLabelValues(status).Inc()
}

// ArtifactUpload records an IPFS artifact upload.
func ArtifactUpload(status string) {
	if !enabled {
		return
	}
	artifactUploadTotal.WithLabelValues(status).Inc()
}

// VerificationRequest records one explorer verification round trip.
func VerificationRequest(result string) {
	if !enabled {
		return
	}
	verificationTotal.WithLabelValues(result).Inc()
}

// VerificationBacklog sets the backlog size observed after a sweep.
func VerificationBacklog(n int) {
	if !enabled {
		return
	}
	verificationBacklog.Set(float64(n))
}

// AnalyticsDropped records an analytics event lost to backpressure.
func AnalyticsDropped() {
	if !enabled {
		return
	}
	analyticsDroppedTotal.Inc()
}

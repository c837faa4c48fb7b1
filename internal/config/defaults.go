package config

// MediaTypeDOCX is the OOXML word-processing media type accepted on upload.
const MediaTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kensho/data/db/kensho.db"
	}
	if cfg.Storage.BlobDir == "" {
		cfg.Storage.BlobDir = "/usr/local/var/kensho/data/blobs"
	}
	if cfg.Upload.MaxSizeBytes == 0 {
		cfg.Upload.MaxSizeBytes = 5 << 20
	}
	if cfg.Upload.AllowedTypes == nil {
		cfg.Upload.AllowedTypes = []string{
			"application/pdf",
			MediaTypeDOCX,
			"text/plain",
			"application/json",
		}
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gemini-1.5-pro"
	}
	if cfg.Generation.APIKeyEnv == "" {
		cfg.Generation.APIKeyEnv = "GEMINI_API_KEY"
	}
	if cfg.Generation.MaxAttempts == 0 {
		cfg.Generation.MaxAttempts = 3
	}
	if cfg.Generation.InitialBackoffMS == 0 {
		cfg.Generation.InitialBackoffMS = 250
	}
	if cfg.Generation.RequestTimeoutSecs == 0 {
		cfg.Generation.RequestTimeoutSecs = 30
	}
	// QueueDepth 0 (reject concurrent runs) is the default; no override needed.
	if cfg.Compliance.Standards == nil {
		cfg.Compliance.Standards = defaultStandards()
	}
}

// defaultStandards is the built-in compliance dictionary for healthcare
// requirements. Keywords are matched case-insensitively against requirement text.
func defaultStandards() []Standard {
	return []Standard{
		{ID: "hipaa", Name: "HIPAA", Keywords: []string{"hipaa", "phi", "protected health information", "patient data", "patient record"}},
		{ID: "gdpr", Name: "GDPR", Keywords: []string{"gdpr", "personal data", "data subject", "right to erasure"}},
		{ID: "fda-part-11", Name: "FDA 21 CFR Part 11", Keywords: []string{"21 cfr part 11", "electronic signature", "electronic record", "audit trail", "audit log"}},
		{ID: "fda-part-820", Name: "FDA 21 CFR Part 820", Keywords: []string{"21 cfr part 820", "quality system", "design control"}},
		{ID: "iec-62304", Name: "IEC 62304", Keywords: []string{"iec 62304", "software lifecycle", "medical device software"}},
		{ID: "iso-13485", Name: "ISO 13485", Keywords: []string{"iso 13485"}},
		{ID: "iso-14971", Name: "ISO 14971", Keywords: []string{"iso 14971", "risk management", "risk analysis"}},
		{ID: "wcag", Name: "WCAG 2.1", Keywords: []string{"wcag", "accessibility", "section 508", "screen reader"}},
	}
}

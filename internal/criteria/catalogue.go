package criteria

// DefaultRegistry returns a registry holding every built-in criterion.
// Registration order is presentation order in reports.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(UnrestrictedIngressSSH())
	r.Register(RestrictedEgress())
	r.Register(AccessKeyRotation())
	r.Register(UserMFAEnabled())
	r.Register(RootMFAEnabled())
	r.Register(BucketDefaultEncryption())
	r.Register(RDSStorageEncryption())
	r.Register(EBSVolumeEncryption())
	r.Register(KMSKeyRotation())
	r.Register(ELBInsecureListener())
	r.Register(AdvisorOpenPorts())
	r.Register(AdvisorS3BucketPermissions())
	r.Register(AdvisorRDSPublicSnapshots())
	return r
}

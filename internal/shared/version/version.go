package version

// Version is overridden at link time with -ldflags "-X connascence/internal/shared/version.Version=...".
var Version = "0.1.0"

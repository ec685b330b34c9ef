package meta

const Service = "groupstore"

// Version is overridden at build time with -ldflags "-X github.com/dkrizic/groupstore/meta.Version=...".
var Version = "dev"

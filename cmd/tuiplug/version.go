package main

// version is stamped at build time via -ldflags.
var version = "dev"

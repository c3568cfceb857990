package ir

// EngineVersion is the patch engine version reported by the CLI.
const EngineVersion = "0.1.0"

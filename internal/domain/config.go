package domain

// KeyPrefix namespaces every key jobrag writes to the shared key-value store.
const KeyPrefix = "jobrag:"

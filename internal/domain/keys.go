package domain

// KeyPrefix namespaces every key docquery writes to the cache store.
const KeyPrefix = "docquery:"

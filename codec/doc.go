// Package codec provides canonical, byte-exact serialization of argument
// and result dictionaries exchanged with the queue.
//
// The wire format is private to this library (msgpack under a
// key-sorted canonical projection); only Encode/Decode in this package
// read or write it. Compatibility across versions of this module is not
// guaranteed unless a version byte is introduced.
package codec

/*
Package lsmcore contains the write-path core of an LSM key/value store:
a versioned internal key codec, an arena-backed skiplist memtable and a
prefix-compressed block format.

# Data Structure Documentation

# Internal Key

An internal key multiplexes a user key, a sequence number and a value
type into a single byte string. Internal keys sort by increasing user key
and then by decreasing sequence number, so the newest version of a key
is found first.

	Internal key layout:
	+--------------------+------------------------------------------------+
	| user key (varlen)  | tag: seq << 8 | type (8 bytes, little-endian)  |
	+--------------------+------------------------------------------------+

# Memtable Record

A memtable record is a self-delimiting buffer stored in a single skiplist
node.

	Record layout:
	+------------------------+---------------------+--------------------+----------------+
	| key len (varint32)     | internal key        | value len (varint32) | value (varlen) |
	+------------------------+---------------------+--------------------+----------------+

# Block

A block is a series of prefix-compressed entries followed by a restart
index. Every n-th entry is a restart point which stores its full key.

	Block layout:
	+---------+-------+---------+------------------------+-------+------------------------+-------------------------------+
	| entry 1 |  ...  | entry n | restart 0 (4 bytes)    |  ...  | restart m-1 (4 bytes)  |  number of restarts (4 bytes) |
	+---------+-------+---------+------------------------+-------+------------------------+-------------------------------+

	Entry:
	+-----------------+-------------------+---------------------+--------------------+------------------+
	| shared (varint) | unshared (varint) | value len (varint)  | key delta (varlen) | value (varlen)   |
	+-----------------+-------------------+---------------------+--------------------+------------------+

# Sealed Block

Sealed blocks, as produced by the block Writer, carry a compression type
and a checksum.

	+------------------------------+---------------------------+--------------------------------+
	| block contents (compressed?) | compression type (1-byte) | masked crc32c (4 bytes)        |
	+------------------------------+---------------------------+--------------------------------+
*/
package lsmcore

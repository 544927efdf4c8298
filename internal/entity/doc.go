// Package entity models request bodies as a closed set of variants.
//
// An [Entity] is one of:
//   - fixed content ([FromText], [FromBytes]): known length, written in one go;
//   - streaming content ([FromWriter], [FromSizedWriter], [FromFile]): driven by a
//     [WriteFunc]; without a declared length it is framed with chunked
//     transfer-coding;
//   - streaming content with trailers ([WithTrailers], [FromWriterWithTrailers]):
//     chunked, with trailer fields written after the terminal chunk.
//
// [Entity.Produce] writes the framed body. A declared length is enforced: writing
// more or fewer bytes than declared returns an error wrapping
// wire.ErrLengthMismatch. Streaming entities can be produced only once.
package entity

// Package codec implements the asset codecs used by the staging pipeline.
package codec

// Note: block-compressed textures (DXT1/3/5 + uncompressed) are implemented in texture.go
// Note: the compressed heightmap format is implemented in heightmap.go
// Note: the MSH0 mesh container is implemented in mesh.go
// Note: tangent-space generation is implemented in tangent.go

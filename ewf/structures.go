package ewf

// Structures of the Expert Witness (EnCase) evidence format, version 1.
// All integers little endian, checksums Adler-32 over the preceding bytes.

var EVFSignature = [8]byte{'E', 'V', 'F', 0x09, 0x0d, 0x0a, 0xff, 0x00}

const (
	FileHeaderLength        = 13
	SectionDescriptorLength = 76
	TableHeaderLength       = 24
)

// media types
const (
	RemovableStorageMediaDevice = 0x00
	FixedStorageMediaDevice     = 0x01
	OpticalDiscDevice           = 0x03
	LogicalEvidenceFile         = 0x0e
	MemoryRAM                   = 0x10
)

// compression levels
const (
	NoCompression   = 0x00
	GoodCompression = 0x01
	BestCompression = 0x02
)

var MediaTypes = map[uint8]string{
	RemovableStorageMediaDevice: "removable storage",
	FixedStorageMediaDevice:     "fixed storage",
	OpticalDiscDevice:           "optical disc",
	LogicalEvidenceFile:         "logical evidence",
	MemoryRAM:                   "RAM",
}

// segment file header, 13 bytes
type FileHeader struct {
	Signature     [8]byte
	FieldsStart   uint8  // always 1
	SegmentNumber uint16 // 1 based
	FieldsEnd     uint16 // always 0
}

// section descriptor, 76 bytes
type Section struct {
	Type       [16]byte // "header", "volume", "sectors", "table", ...
	NextOffset uint64   // from the start of the segment file
	Size       uint64   // includes the descriptor
	Padding    [40]byte
	Checksum   uint32
}

// volume/disk section body, 1052 bytes
type VolumeSection struct {
	MediaType        uint8 //0
	Space1           [3]byte
	ChunkCount       uint32 //4-8
	SectorsPerChunk  uint32 //8-12
	BytesPerSector   uint32 //12-16
	SectorCount      uint64 //16-24
	CHSCylinders     uint32
	CHSHeads         uint32
	CHSSectors       uint32
	MediaFlags       uint8
	Space2           [3]byte
	PalmStartSector  uint32
	Space3           uint32
	SmartStartSector uint32
	CompressionLevel uint8 //51
	Space4           [3]byte
	ErrorGranularity uint32
	Space5           uint32
	SetIdentifier    [16]byte //64-80 GUID of the segment file set
	Space6           [963]byte
	Signature        [5]byte
	Checksum         uint32
}

// table section body header, 24 bytes, followed by EntryCount uint32
// offsets and a trailing Adler-32 of the entries
type TableHeader struct {
	EntryCount uint32
	Padding    [16]byte
	Checksum   uint32
}

// hash section body: MD5 of the acquired media
type HashSection struct {
	MD5      [16]byte
	Unknown  [16]byte
	Checksum uint32
}

// digest section body: MD5 and SHA1 of the acquired media
type DigestSection struct {
	MD5      [16]byte
	SHA1     [20]byte
	Padding  [40]byte
	Checksum uint32
}

// chunk locates the stored bytes of one chunk inside a segment file; the
// most significant bit of a table entry marks zlib compression
type chunk struct {
	segment    int
	fileOffset int64
	storedLen  int64
	compressed bool
}

package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	SessionID       string       `json:"session_id"`
	WorldParams     WorldParams  `json:"world_params"`
	Catalog         BlockCatalog `json:"catalog"`
}

type WorldParams struct {
	Seed      int64  `json:"seed"`
	Noise     string `json:"noise"`
	ChunkSize [3]int `json:"chunk_size"`
	// 0 means the world is unbounded.
	BoundaryR int `json:"boundary_r"`
}

type BlockCatalog struct {
	PaletteDigest string     `json:"palette_digest"`
	DefsDigest    string     `json:"defs_digest"`
	Blocks        []BlockRef `json:"blocks"`
}

type BlockRef struct {
	ID          uint8      `json:"id"`
	Name        string     `json:"name"`
	Solid       bool       `json:"solid"`
	Transparent bool       `json:"transparent"`
	Color       [3]float32 `json:"color"`
}

// CHUNK_REQ (client -> server)
type ChunkReqMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	CX              int    `json:"cx"`
	CZ              int    `json:"cz"`
}

// CHUNK (server -> client). Data is RLE over the linear block grid,
// index (y*size_z+z)*size_x+x.
type ChunkMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	CX              int    `json:"cx"`
	CZ              int    `json:"cz"`
	Size            [3]int `json:"size"`
	Digest          string `json:"digest"`
	Encoding        string `json:"encoding"`
	Data            string `json:"data"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewError(reqID, code, message string) ErrorMsg {
	return ErrorMsg{
		Type:            TypeError,
		ProtocolVersion: Version,
		ReqID:           reqID,
		Code:            code,
		Message:         message,
	}
}

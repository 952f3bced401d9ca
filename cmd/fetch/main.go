// Command fetch connects to a chunk server, requests every chunk within a
// radius, and checks each one against its digest.
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"voxelterrain.ai/internal/protocol"
	"voxelterrain.ai/internal/sim/catalogs"
	"voxelterrain.ai/internal/sim/encoding"
	"voxelterrain.ai/internal/sim/world/terrain/store"
)

func main() {
	var (
		url    = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name   = flag.String("name", "fetch", "client name")
		cx     = flag.Int("cx", 0, "center chunk x")
		cz     = flag.Int("cz", 0, "center chunk z")
		radius = flag.Int("radius", 2, "square radius in chunks")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[fetch] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	c := &client{conn: conn, logger: logger}
	welcome, err := c.hello(*name)
	if err != nil {
		logger.Fatalf("handshake: %v", err)
	}
	logger.Printf("WELCOME session=%s seed=%d noise=%s boundary_r=%d",
		welcome.SessionID, welcome.WorldParams.Seed, welcome.WorldParams.Noise, welcome.WorldParams.BoundaryR)

	start := time.Now()
	res, err := c.fetchRegion(*cx, *cz, *radius)
	if err != nil {
		logger.Fatalf("fetch: %v", err)
	}
	logger.Printf("fetched %s chunks (%s rejected) in %s, %s payload",
		humanize.Comma(int64(res.Chunks)), humanize.Comma(int64(res.Rejected)),
		time.Since(start).Round(time.Millisecond), humanize.Bytes(res.Bytes))
	for _, v := range catalogs.Variants() {
		if n := res.Counts[v]; n > 0 {
			logger.Printf("  %-6s %s", v, humanize.Comma(int64(n)))
		}
	}
}

type client struct {
	conn   *websocket.Conn
	logger *log.Logger
	nextID int
}

type regionResult struct {
	Chunks   int
	Rejected int
	Bytes    uint64
	Counts   [catalogs.NumVariants]int
}

func (c *client) hello(name string) (protocol.WelcomeMsg, error) {
	var w protocol.WelcomeMsg
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      name,
	}
	if err := c.conn.WriteJSON(hello); err != nil {
		return w, fmt.Errorf("send HELLO: %w", err)
	}
	msg, err := c.read()
	if err != nil {
		return w, err
	}
	if err := json.Unmarshal(msg, &w); err != nil || w.Type != protocol.TypeWelcome {
		return w, fmt.Errorf("expected WELCOME, got %s", msg)
	}
	if w.WorldParams.ChunkSize != [3]int{store.ChunkSize, store.ChunkHeight, store.ChunkSize} {
		return w, fmt.Errorf("unsupported chunk size %v", w.WorldParams.ChunkSize)
	}
	return w, nil
}

// fetchRegion requests chunks one at a time. Out-of-bounds and rate-limited
// requests count as rejected; anything else unexpected is an error.
func (c *client) fetchRegion(cx, cz, radius int) (regionResult, error) {
	var res regionResult
	for dz := -radius; dz <= radius; dz++ {
		for dx := -radius; dx <= radius; dx++ {
			ok, err := c.fetchOne(cx+dx, cz+dz, &res)
			if err != nil {
				return res, err
			}
			if !ok {
				res.Rejected++
			}
		}
	}
	return res, nil
}

func (c *client) fetchOne(cx, cz int, res *regionResult) (bool, error) {
	c.nextID++
	reqID := "R" + strconv.Itoa(c.nextID)
	req := protocol.ChunkReqMsg{
		Type:            protocol.TypeChunkReq,
		ProtocolVersion: protocol.Version,
		ReqID:           reqID,
		CX:              cx,
		CZ:              cz,
	}
	if err := c.conn.WriteJSON(req); err != nil {
		return false, err
	}
	msg, err := c.read()
	if err != nil {
		return false, err
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return false, err
	}

	switch base.Type {
	case protocol.TypeError:
		var e protocol.ErrorMsg
		_ = json.Unmarshal(msg, &e)
		switch e.Code {
		case protocol.ErrOutOfBounds, protocol.ErrRateLimit:
			c.logger.Printf("chunk (%d,%d): %s %s", cx, cz, e.Code, e.Message)
			return false, nil
		}
		return false, fmt.Errorf("chunk (%d,%d): %s %s", cx, cz, e.Code, e.Message)

	case protocol.TypeChunk:
		var ch protocol.ChunkMsg
		if err := json.Unmarshal(msg, &ch); err != nil {
			return false, err
		}
		if ch.ReqID != reqID || ch.CX != cx || ch.CZ != cz {
			return false, fmt.Errorf("reply %s (%d,%d) does not match request %s (%d,%d)", ch.ReqID, ch.CX, ch.CZ, reqID, cx, cz)
		}
		blocks, err := encoding.DecodeRLE(ch.Data, store.ChunkVolume)
		if err != nil {
			return false, fmt.Errorf("chunk (%d,%d): %w", cx, cz, err)
		}
		sum := store.DigestBlocks(blocks)
		if got := hex.EncodeToString(sum[:]); got != ch.Digest {
			return false, fmt.Errorf("chunk (%d,%d): digest mismatch", cx, cz)
		}
		for _, b := range blocks {
			res.Counts[b]++
		}
		res.Chunks++
		res.Bytes += uint64(len(msg))
		return true, nil
	}
	return false, fmt.Errorf("unexpected message type %q", base.Type)
}

func (c *client) read() ([]byte, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	_, msg, err := c.conn.ReadMessage()
	return msg, err
}

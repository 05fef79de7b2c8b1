package objectexplorer

import (
	"strconv"
	"strings"

	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/smo"
)

// FolderNodeType is the nodeType of collection nodes.
const FolderNodeType = "Folder"

// NodeInfo is the wire form of a tree node.
type NodeInfo struct {
	NodePath     string    `json:"nodePath"`
	Label        string    `json:"label"`
	NodeType     string    `json:"nodeType"`
	IsLeaf       bool      `json:"isLeaf"`
	Metadata     *Metadata `json:"metadata"`
	ErrorMessage *string   `json:"errorMessage"`
}

// Metadata identifies the database object behind a node.
type Metadata struct {
	MetadataTypeName string `json:"metadataTypeName"`
	Name             string `json:"name"`
	Schema           string `json:"schema,omitempty"`
	URN              string `json:"urn"`
	OID              uint32 `json:"oid"`
}

// rootNodeInfo describes the session root. The root stands for the connected
// database, so it is typed and labeled as one.
func rootNodeInfo(srv *smo.Server) NodeInfo {
	db := srv.Info().Database
	return NodeInfo{
		NodePath: RootPath,
		Label:    db,
		NodeType: smo.TypeDatabase.String(),
		Metadata: &Metadata{
			MetadataTypeName: smo.TypeDatabase.String(),
			Name:             db,
			URN:              RootPath,
		},
	}
}

func objectNodeInfo(obj smo.Object) NodeInfo {
	if srv, ok := obj.(*smo.Server); ok {
		return rootNodeInfo(srv)
	}
	md := &Metadata{
		MetadataTypeName: obj.Type().String(),
		Name:             obj.Name(),
		URN:              urn(obj),
		OID:              obj.OID(),
	}
	if schema := smo.Nearest(obj.Parent(), smo.TypeSchema); schema != nil {
		md.Schema = schema.Name()
	}
	return NodeInfo{
		NodePath: ObjectPath(obj),
		Label:    obj.Label(),
		NodeType: obj.Type().String(),
		IsLeaf:   smo.IsLeaf(obj),
		Metadata: md,
	}
}

func folderNodeInfo(c *smo.Collection) NodeInfo {
	info := NodeInfo{
		NodePath: FolderPath(c),
		Label:    c.Label(),
		NodeType: FolderNodeType,
	}
	if err := c.Available(); err != nil {
		info.ErrorMessage = errorMessage(err)
	}
	return info
}

// urn is the oid path of obj below the server, e.g. "/5/2200/16600/".
func urn(obj smo.Object) string {
	var sb strings.Builder
	sb.WriteString("/")
	for _, o := range append(smo.Ancestors(obj)[1:], obj) {
		sb.WriteString(strconv.FormatUint(uint64(o.OID()), 10))
		sb.WriteString("/")
	}
	return sb.String()
}

func errorMessage(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	return &msg
}

// Package aifspb holds the wire messages for the asset information
// filesystem's gRPC asset service.
package aifspb

import "fmt"

type PutAssetRequest struct {
	Key      string            `protobuf:"bytes,1,opt,name=key,proto3" json:"key,omitempty"`
	Data     []byte            `protobuf:"bytes,2,opt,name=data,proto3" json:"data,omitempty"`
	Checksum string            `protobuf:"bytes,3,opt,name=checksum,proto3" json:"checksum,omitempty"`
	Metadata map[string]string `protobuf:"bytes,4,rep,name=metadata,proto3" json:"metadata,omitempty" protobuf_key:"bytes,1,opt,name=key,proto3" protobuf_val:"bytes,2,opt,name=value,proto3"`
}

func (x *PutAssetRequest) Reset()         { *x = PutAssetRequest{} }
func (x *PutAssetRequest) String() string { return fmt.Sprintf("%+v", *x) }
func (*PutAssetRequest) ProtoMessage()    {}

type PutAssetResponse struct {
	Checksum string `protobuf:"bytes,1,opt,name=checksum,proto3" json:"checksum,omitempty"`
	Size     int64  `protobuf:"varint,2,opt,name=size,proto3" json:"size,omitempty"`
}

func (x *PutAssetResponse) Reset()         { *x = PutAssetResponse{} }
func (x *PutAssetResponse) String() string { return fmt.Sprintf("%+v", *x) }
func (*PutAssetResponse) ProtoMessage()    {}

type GetAssetRequest struct {
	Key string `protobuf:"bytes,1,opt,name=key,proto3" json:"key,omitempty"`
}

func (x *GetAssetRequest) Reset()         { *x = GetAssetRequest{} }
func (x *GetAssetRequest) String() string { return fmt.Sprintf("%+v", *x) }
func (*GetAssetRequest) ProtoMessage()    {}

type GetAssetResponse struct {
	Data     []byte `protobuf:"bytes,1,opt,name=data,proto3" json:"data,omitempty"`
	Checksum string `protobuf:"bytes,2,opt,name=checksum,proto3" json:"checksum,omitempty"`
}

func (x *GetAssetResponse) Reset()         { *x = GetAssetResponse{} }
func (x *GetAssetResponse) String() string { return fmt.Sprintf("%+v", *x) }
func (*GetAssetResponse) ProtoMessage()    {}

type StatAssetRequest struct {
	Key string `protobuf:"bytes,1,opt,name=key,proto3" json:"key,omitempty"`
}

func (x *StatAssetRequest) Reset()         { *x = StatAssetRequest{} }
func (x *StatAssetRequest) String() string { return fmt.Sprintf("%+v", *x) }
func (*StatAssetRequest) ProtoMessage()    {}

type StatAssetResponse struct {
	Key          string `protobuf:"bytes,1,opt,name=key,proto3" json:"key,omitempty"`
	Size         int64  `protobuf:"varint,2,opt,name=size,proto3" json:"size,omitempty"`
	Checksum     string `protobuf:"bytes,3,opt,name=checksum,proto3" json:"checksum,omitempty"`
	LastModified int64  `protobuf:"varint,4,opt,name=last_modified,json=lastModified,proto3" json:"last_modified,omitempty"`
	SnapshotRefs int32  `protobuf:"varint,5,opt,name=snapshot_refs,json=snapshotRefs,proto3" json:"snapshot_refs,omitempty"`
}

func (x *StatAssetResponse) Reset()         { *x = StatAssetResponse{} }
func (x *StatAssetResponse) String() string { return fmt.Sprintf("%+v", *x) }
func (*StatAssetResponse) ProtoMessage()    {}

type DeleteAssetRequest struct {
	Key string `protobuf:"bytes,1,opt,name=key,proto3" json:"key,omitempty"`
}

func (x *DeleteAssetRequest) Reset()         { *x = DeleteAssetRequest{} }
func (x *DeleteAssetRequest) String() string { return fmt.Sprintf("%+v", *x) }
func (*DeleteAssetRequest) ProtoMessage()    {}

type DeleteAssetResponse struct{}

func (x *DeleteAssetResponse) Reset()         { *x = DeleteAssetResponse{} }
func (x *DeleteAssetResponse) String() string { return fmt.Sprintf("%+v", *x) }
func (*DeleteAssetResponse) ProtoMessage()    {}

type ListAssetsRequest struct {
	Prefix   string `protobuf:"bytes,1,opt,name=prefix,proto3" json:"prefix,omitempty"`
	PageSize int32  `protobuf:"varint,2,opt,name=page_size,json=pageSize,proto3" json:"page_size,omitempty"`
	PageToken string `protobuf:"bytes,3,opt,name=page_token,json=pageToken,proto3" json:"page_token,omitempty"`
}

func (x *ListAssetsRequest) Reset()         { *x = ListAssetsRequest{} }
func (x *ListAssetsRequest) String() string { return fmt.Sprintf("%+v", *x) }
func (*ListAssetsRequest) ProtoMessage()    {}

type ListAssetsResponse struct {
	Items         []*StatAssetResponse `protobuf:"bytes,1,rep,name=items,proto3" json:"items,omitempty"`
	NextPageToken string               `protobuf:"bytes,2,opt,name=next_page_token,json=nextPageToken,proto3" json:"next_page_token,omitempty"`
}

func (x *ListAssetsResponse) Reset()         { *x = ListAssetsResponse{} }
func (x *ListAssetsResponse) String() string { return fmt.Sprintf("%+v", *x) }
func (*ListAssetsResponse) ProtoMessage()    {}

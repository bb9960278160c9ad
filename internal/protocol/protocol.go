package protocol

// Version is the wire protocol version announced in LoginSuccess and checked
// by the bot client.
const Version = 340

// Serverbound packet ids.
const (
	IDLoginStart              int32 = 0x00
	IDChatMessageIn           int32 = 0x03
	IDClientStatus            int32 = 0x04
	IDClientSettings          int32 = 0x05
	IDKeepAliveIn             int32 = 0x0F
	IDPlayerPosition          int32 = 0x11
	IDPlayerDigging           int32 = 0x1A
	IDPlayerAction            int32 = 0x1B
	IDAdvancementTab          int32 = 0x21
	IDCreativeInventoryAction int32 = 0x26
)

// Clientbound packet ids.
const (
	IDLoginSuccess         int32 = 0x02
	IDEntityAnimation      int32 = 0x06
	IDChatMessageOut       int32 = 0x0E
	IDDisconnect           int32 = 0x1B
	IDKeepAliveOut         int32 = 0x21
	IDJoinGame             int32 = 0x23
	IDSelectAdvancementTab int32 = 0x3C
	IDAdvancements         int32 = 0x57
)

// Message is any decoded or encodable packet value.
type Message interface{}

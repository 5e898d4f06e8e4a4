package st7789

// Commands
const (
	NOP      = 0x00
	SWRESET  = 0x01
	RDDID    = 0x04
	RDDST    = 0x09
	SLPIN    = 0x10
	SLPOUT   = 0x11
	PTLON    = 0x12
	NORON    = 0x13
	INVOFF   = 0x20
	INVON    = 0x21
	DISPOFF  = 0x28
	DISPON   = 0x29
	CASET    = 0x2A
	RASET    = 0x2B
	RAMWR    = 0x2C
	RAMRD    = 0x2E
	PTLAR    = 0x30
	VSCRDEF  = 0x33
	TEOFF    = 0x34
	TEON     = 0x35
	MADCTL   = 0x36
	VSCRSADD = 0x37
	COLMOD   = 0x3A
	GSCAN    = 0x45
	RAMCTRL  = 0xB0
	PORCTRL  = 0xB2
	FRCTRL2  = 0xC6
	GMCTRP1  = 0xE0
	GMCTRN1  = 0xE1
)

// Memory data access control bits.
const (
	MADCTL_MY  = 0x80
	MADCTL_MX  = 0x40
	MADCTL_MV  = 0x20
	MADCTL_ML  = 0x10
	MADCTL_BGR = 0x08
	MADCTL_MH  = 0x04
)

// Interface pixel formats, the low nibble of COLMOD.
const (
	ColorRGB444 ColorFormat = 0b011
	ColorRGB565 ColorFormat = 0b101
	ColorRGB666 ColorFormat = 0b110
)

// Rotation controls the rotation used by the display, clockwise.
type Rotation uint8

const (
	NO_ROTATION Rotation = iota
	ROTATION_90
	ROTATION_180
	ROTATION_270
)

// Frame rates for FRCTRL2 in normal mode.
const (
	FRAMERATE_111 FrameRate = 0x01
	FRAMERATE_105 FrameRate = 0x02
	FRAMERATE_99  FrameRate = 0x03
	FRAMERATE_94  FrameRate = 0x04
	FRAMERATE_90  FrameRate = 0x05
	FRAMERATE_86  FrameRate = 0x06
	FRAMERATE_82  FrameRate = 0x07
	FRAMERATE_78  FrameRate = 0x08
	FRAMERATE_75  FrameRate = 0x09
	FRAMERATE_72  FrameRate = 0x0A
	FRAMERATE_69  FrameRate = 0x0B
	FRAMERATE_67  FrameRate = 0x0C
	FRAMERATE_64  FrameRate = 0x0D
	FRAMERATE_62  FrameRate = 0x0E
	FRAMERATE_60  FrameRate = 0x0F
	FRAMERATE_50  FrameRate = 0x15
	FRAMERATE_40  FrameRate = 0x1E
	FRAMERATE_39  FrameRate = 0x1F

	MAX_VSYNC_SCANLINES = 254
)
